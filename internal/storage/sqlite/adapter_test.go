package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpherson-lab/pubsync/internal/domain"
	"github.com/mcpherson-lab/pubsync/internal/storage"
)

func newTestStorage(t *testing.T) storage.Storage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id string, startedAt time.Time, dryRun bool) *domain.SyncRun {
	run := domain.NewSyncRun(id, dryRun, startedAt)

	alice := run.Member("alice")
	alice.Considered = 3
	alice.Created = 2
	alice.SkippedExisting = 1

	bob := run.Member("bob")
	bob.Considered = 1
	bob.FetchFailed = 1
	bob.Errors = []string{"paper: FETCH_ERROR: fetching paper (boom)"}

	run.Finish(startedAt.Add(time.Minute))
	return run
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	startedAt := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)
	run := sampleRun("run-1", startedAt, false)
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "run-1", got.ID)
	assert.False(t, got.DryRun)
	assert.Equal(t, run.Totals, got.Totals)
	require.Len(t, got.Members, 2)

	alice := got.Member("alice")
	assert.Equal(t, 2, alice.Created)
	assert.Empty(t, alice.Errors)

	bob := got.Member("bob")
	assert.Equal(t, 1, bob.FetchFailed)
	assert.Equal(t, []string{"paper: FETCH_ERROR: fetching paper (boom)"}, bob.Errors)
}

func TestGetRunMissing(t *testing.T) {
	store := newTestStorage(t)

	got, err := store.GetRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveRunIsIdempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	startedAt := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)
	run := sampleRun("run-1", startedAt, false)
	require.NoError(t, store.SaveRun(ctx, run))
	require.NoError(t, store.SaveRun(ctx, run))

	runs, err := store.GetRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetRunsOrderAndLimit(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := sampleRun(
			string(rune('a'+i))+"-run",
			base.Add(time.Duration(i)*time.Hour),
			false,
		)
		require.NoError(t, store.SaveRun(ctx, run))
	}

	runs, err := store.GetRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c-run", runs[0].ID, "newest first")
	assert.Equal(t, "b-run", runs[1].ID)
}

func TestGetMemberTotals(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", base, false)))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-2", base.Add(time.Hour), false)))
	// Dry runs are excluded from totals
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-3", base.Add(2*time.Hour), true)))

	stats, err := store.GetMemberTotals(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	byName := map[string]*domain.MemberStats{}
	for _, st := range stats {
		byName[st.Username] = st
	}

	alice := byName["alice"]
	require.NotNil(t, alice)
	assert.Equal(t, 2, alice.Runs)
	assert.Equal(t, 4, alice.Created)
	require.NotNil(t, alice.LastRunAt)

	bob := byName["bob"]
	require.NotNil(t, bob)
	assert.Equal(t, 2, bob.FetchFailed)
}
