package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mcpherson-lab/pubsync/internal/errors"
)

const sampleRoster = `
members:
  - username: asmith
    name: Alice Smith
    role: PI
    profile_url: https://asmith.github.io
  - username: BJones
    profile_url: https://bjones.github.io
    publications_path: posts/papers
    active: false
    known_dirs:
      - attention-2024
      - survey-2025

sync_config:
  schedule: "0 6 * * *"
  max_posts_per_member: 10
  preserve_dates: false
`

func TestParseRoster(t *testing.T) {
	roster, err := ParseRoster([]byte(sampleRoster))
	require.NoError(t, err)
	require.Len(t, roster.Members, 2)

	alice := roster.Members[0]
	assert.Equal(t, "asmith", alice.Username)
	assert.Equal(t, "Alice Smith", alice.Name)
	assert.Equal(t, "PI", alice.Role)
	assert.True(t, alice.Active)
	assert.Equal(t, "asmith.github.io", alice.SiteRepo())
	assert.Equal(t, "publications", alice.PubPath())

	bob := roster.Members[1]
	assert.Equal(t, "BJones", bob.Name, "name defaults to username")
	assert.False(t, bob.Active)
	assert.Equal(t, "posts/papers", bob.PubPath())
	assert.Equal(t, []string{"attention-2024", "survey-2025"}, bob.KnownDirs)

	assert.Equal(t, "0 6 * * *", roster.SyncConfig.Schedule)
	assert.Equal(t, 10, roster.SyncConfig.MaxPostsPerMember)
	assert.False(t, roster.SyncConfig.PreserveDates)
	assert.True(t, roster.SyncConfig.AddAttribution, "unset options keep their defaults")
	assert.True(t, roster.SyncConfig.LowercaseUsernames)
}

func TestParseRosterDefaults(t *testing.T) {
	roster, err := ParseRoster([]byte("members:\n  - username: a\n    profile_url: https://a.github.io\n"))
	require.NoError(t, err)

	assert.Equal(t, 50, roster.SyncConfig.MaxPostsPerMember)
	assert.True(t, roster.SyncConfig.PreserveDates)
	assert.True(t, roster.SyncConfig.AddAttribution)
	assert.True(t, roster.SyncConfig.LowercaseUsernames)
}

func TestParseRosterRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid yaml", "members: [unclosed"},
		{"no members", "members: []"},
		{"missing username", "members:\n  - profile_url: https://a.github.io\n"},
		{"missing profile_url", "members:\n  - username: a\n"},
		{"duplicate username", "members:\n  - username: a\n    profile_url: https://a.github.io\n  - username: a\n    profile_url: https://a.github.io\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoster([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, apperrors.IsConfig(err))
		})
	}
}

func TestRosterFind(t *testing.T) {
	roster, err := ParseRoster([]byte(sampleRoster))
	require.NoError(t, err)

	assert.NotNil(t, roster.Find("asmith"))
	assert.Nil(t, roster.Find("nobody"))
}
