package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalEntryName(t *testing.T) {
	assert.Equal(t, "asmith-attention-2024", LocalEntryName("ASmith", "attention-2024", true))
	assert.Equal(t, "ASmith-attention-2024", LocalEntryName("ASmith", "attention-2024", false))
}

func TestMemberPubPath(t *testing.T) {
	m := &Member{Username: "asmith"}
	assert.Equal(t, "publications", m.PubPath())
	assert.Equal(t, "asmith.github.io", m.SiteRepo())

	m.PublicationsPath = "/posts/papers/"
	assert.Equal(t, "posts/papers", m.PubPath())
}

func TestSyncRunFinish(t *testing.T) {
	start := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)
	run := NewSyncRun("r1", false, start)

	a := run.Member("alice")
	a.Considered = 3
	a.Created = 2
	a.SkippedExisting = 1

	b := run.Member("bob")
	b.Considered = 2
	b.FetchFailed = 2

	assert.Same(t, a, run.Member("alice"), "summary slot is reused")

	end := start.Add(time.Minute)
	run.Finish(end)

	assert.Equal(t, end, run.FinishedAt)
	assert.Equal(t, 5, run.Totals.Considered)
	assert.Equal(t, 2, run.Totals.Created)
	assert.Equal(t, 1, run.Totals.SkippedExisting)
	assert.Equal(t, 2, run.Totals.FetchFailed)
}
