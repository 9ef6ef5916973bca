package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mcpherson-lab/pubsync/internal/domain"
	apperrors "github.com/mcpherson-lab/pubsync/internal/errors"
)

// SyncConfig holds the global sync options from the roster document
type SyncConfig struct {
	Schedule           string `yaml:"schedule" json:"schedule"`
	MaxPostsPerMember  int    `yaml:"max_posts_per_member" json:"max_posts_per_member"`
	PreserveDates      bool   `yaml:"preserve_dates" json:"preserve_dates"`
	AddAttribution     bool   `yaml:"add_attribution" json:"add_attribution"`
	LowercaseUsernames bool   `yaml:"lowercase_usernames" json:"lowercase_usernames"`
}

// Roster is the parsed member roster plus sync options. The roster file is
// the sole source of truth for membership and is never written by the tool.
type Roster struct {
	Members    []*domain.Member
	SyncConfig SyncConfig
}

// Find returns the member with the given username, or nil
func (r *Roster) Find(username string) *domain.Member {
	for _, m := range r.Members {
		if m.Username == username {
			return m
		}
	}
	return nil
}

type rosterMember struct {
	Username         string   `yaml:"username"`
	Name             string   `yaml:"name"`
	Role             string   `yaml:"role"`
	ProfileURL       string   `yaml:"profile_url"`
	PublicationsPath string   `yaml:"publications_path"`
	Active           *bool    `yaml:"active"`
	KnownDirs        []string `yaml:"known_dirs"`
}

type rosterFile struct {
	Members    []rosterMember `yaml:"members"`
	SyncConfig *struct {
		Schedule           string `yaml:"schedule"`
		MaxPostsPerMember  *int   `yaml:"max_posts_per_member"`
		PreserveDates      *bool  `yaml:"preserve_dates"`
		AddAttribution     *bool  `yaml:"add_attribution"`
		LowercaseUsernames *bool  `yaml:"lowercase_usernames"`
	} `yaml:"sync_config"`
}

// LoadRoster reads and validates the roster configuration document.
// Any malformation is fatal for the whole run: no partial roster is acted on.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("cannot read roster %s", path), err)
	}
	return ParseRoster(data)
}

// ParseRoster parses a roster document
func ParseRoster(data []byte) (*Roster, error) {
	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.NewConfigError("malformed roster document", err)
	}
	if len(file.Members) == 0 {
		return nil, apperrors.NewConfigError("roster has no members", nil)
	}

	roster := &Roster{
		SyncConfig: SyncConfig{
			MaxPostsPerMember:  50,
			PreserveDates:      true,
			AddAttribution:     true,
			LowercaseUsernames: true,
		},
	}
	if sc := file.SyncConfig; sc != nil {
		roster.SyncConfig.Schedule = sc.Schedule
		if sc.MaxPostsPerMember != nil {
			roster.SyncConfig.MaxPostsPerMember = *sc.MaxPostsPerMember
		}
		if sc.PreserveDates != nil {
			roster.SyncConfig.PreserveDates = *sc.PreserveDates
		}
		if sc.AddAttribution != nil {
			roster.SyncConfig.AddAttribution = *sc.AddAttribution
		}
		if sc.LowercaseUsernames != nil {
			roster.SyncConfig.LowercaseUsernames = *sc.LowercaseUsernames
		}
	}

	seen := make(map[string]bool, len(file.Members))
	for i, rm := range file.Members {
		if rm.Username == "" {
			return nil, apperrors.NewConfigError(fmt.Sprintf("member #%d is missing a username", i+1), nil)
		}
		if rm.ProfileURL == "" {
			return nil, apperrors.NewConfigError(fmt.Sprintf("member %s is missing a profile_url", rm.Username), nil)
		}
		if seen[rm.Username] {
			return nil, apperrors.NewConfigError(fmt.Sprintf("duplicate member username %s", rm.Username), nil)
		}
		seen[rm.Username] = true

		member := &domain.Member{
			Username:         rm.Username,
			Name:             rm.Name,
			Role:             rm.Role,
			ProfileURL:       rm.ProfileURL,
			PublicationsPath: rm.PublicationsPath,
			Active:           true,
			KnownDirs:        rm.KnownDirs,
		}
		if rm.Active != nil {
			member.Active = *rm.Active
		}
		if member.Name == "" {
			member.Name = member.Username
		}
		roster.Members = append(roster.Members, member)
	}

	return roster, nil
}
