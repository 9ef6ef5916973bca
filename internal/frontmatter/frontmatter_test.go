package frontmatter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mcpherson-lab/pubsync/internal/errors"
)

const sampleContent = `---
title: "Attention Is Not All You Need"
author:
  - Alice Smith
  - Bob Jones
date: 2026-03-14
publication: Journal of Negative Results
categories: [machine-learning, commentary]
---

The body of the post.

More body.
`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleContent))
	require.NoError(t, err)

	assert.Equal(t, "Attention Is Not All You Need", doc.Fields.Title)
	assert.Equal(t, StringList{"Alice Smith", "Bob Jones"}, doc.Fields.Author)
	assert.Equal(t, "2026-03-14", doc.Fields.Date)
	assert.Equal(t, "Journal of Negative Results", doc.Fields.Publication)
	assert.Equal(t, StringList{"machine-learning", "commentary"}, doc.Fields.Categories)
	assert.Equal(t, "\nThe body of the post.\n\nMore body.\n", doc.Body)
	assert.True(t, strings.HasPrefix(doc.Raw, `title: "Attention`))
}

func TestParseScalarAuthor(t *testing.T) {
	doc, err := Parse([]byte("---\ntitle: T\nauthor: Alice Smith\n---\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, StringList{"Alice Smith"}, doc.Fields.Author)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no front matter", "just a plain file\n"},
		{"bare delimiter", "---"},
		{"delimiter line only", "---\n"},
		{"unterminated", "---\ntitle: T\nbody without closing delimiter\n"},
		{"invalid yaml", "---\ntitle: [unclosed\n---\nbody\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.True(t, apperrors.IsParse(err))
		})
	}
}

func TestRewritePreservesOriginalText(t *testing.T) {
	doc, err := Parse([]byte(sampleContent))
	require.NoError(t, err)

	out := string(Rewrite(doc, Attribution{
		MemberName:  "Alice Smith",
		Username:    "asmith",
		ProfileURL:  "https://asmith.github.io",
		OriginalURL: "https://github.com/asmith/asmith.github.io/blob/main/publications/attention/index.qmd",
		Directory:   "attention",
	}, Options{
		AddAttribution: true,
		PreserveDates:  true,
		SyncDate:       time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}))

	// Original fields are byte-for-byte intact
	assert.Contains(t, out, `title: "Attention Is Not All You Need"`)
	assert.Contains(t, out, "date: 2026-03-14")
	assert.NotContains(t, out, "date: 2026-08-25")

	// Attribution block inside the front matter
	assert.Contains(t, out, "source:\n  member: Alice Smith\n  username: asmith\n")
	assert.Contains(t, out, "  directory: attention\n")

	// Footer after the body
	assert.Contains(t, out, "*This publication was originally published by [Alice Smith](https://asmith.github.io) and automatically synced to the lab website.*")

	// Body survives
	assert.Contains(t, out, "The body of the post.\n\nMore body.\n")
}

func TestRewriteReplacesDate(t *testing.T) {
	doc, err := Parse([]byte(sampleContent))
	require.NoError(t, err)

	out := string(Rewrite(doc, Attribution{}, Options{
		PreserveDates: false,
		SyncDate:      time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}))

	assert.Contains(t, out, "date: 2026-08-25")
	assert.NotContains(t, out, "date: 2026-03-14")
}

func TestRewriteReplacesOnlyFirstDate(t *testing.T) {
	// Rewrite works on the raw text, so it must not touch anything past the
	// first date line even when the text would not decode cleanly
	doc := &Document{
		Raw:  "title: T\ndate: 2026-01-01\nnotes: kept\ndate: 2026-02-02\n",
		Body: "body\n",
	}

	out := string(Rewrite(doc, Attribution{}, Options{
		PreserveDates: false,
		SyncDate:      time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}))

	assert.Contains(t, out, "date: 2026-08-25")
	assert.NotContains(t, out, "date: 2026-01-01")
	assert.Contains(t, out, "date: 2026-02-02", "later date lines stay untouched")
}

func TestRewriteAddsDateWhenMissing(t *testing.T) {
	doc, err := Parse([]byte("---\ntitle: T\n---\nbody\n"))
	require.NoError(t, err)

	out := string(Rewrite(doc, Attribution{}, Options{
		PreserveDates: false,
		SyncDate:      time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}))

	assert.Contains(t, out, "date: 2026-08-25")
}

func TestRewriteWithoutAttribution(t *testing.T) {
	doc, err := Parse([]byte(sampleContent))
	require.NoError(t, err)

	out := string(Rewrite(doc, Attribution{MemberName: "Alice"}, Options{
		AddAttribution: false,
		PreserveDates:  true,
	}))

	assert.NotContains(t, out, "source:")
	assert.NotContains(t, out, "originally published")
	assert.Equal(t, sampleContent, out, "nothing to inject means byte-identical output")
}

func TestRewriteRoundTripParses(t *testing.T) {
	doc, err := Parse([]byte(sampleContent))
	require.NoError(t, err)

	out := Rewrite(doc, Attribution{
		MemberName: "Alice Smith",
		Username:   "asmith",
		ProfileURL: "https://asmith.github.io",
	}, Options{AddAttribution: true, PreserveDates: true})

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, doc.Fields.Title, again.Fields.Title)
	assert.Equal(t, doc.Fields.Date, again.Fields.Date)
}
