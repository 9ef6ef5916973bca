// Package history is the read side of the run history store, serving the
// CLI history command and the HTTP API.
package history

import (
	"context"

	"github.com/mcpherson-lab/pubsync/internal/domain"
	apperrors "github.com/mcpherson-lab/pubsync/internal/errors"
	"github.com/mcpherson-lab/pubsync/internal/storage"
)

// Service answers history queries over a Storage
type Service struct {
	store storage.Storage
}

// New creates a history service
func New(store storage.Storage) *Service {
	return &Service{store: store}
}

// RecentRuns returns up to limit runs, newest first
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.GetRuns(ctx, limit)
}

// Run returns one run by ID
func (s *Service) Run(ctx context.Context, id string) (*domain.SyncRun, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apperrors.NewNotFoundError("run " + id)
	}
	return run, nil
}

// MemberTotals returns each member's lifetime totals across recorded runs
func (s *Service) MemberTotals(ctx context.Context) ([]*domain.MemberStats, error) {
	return s.store.GetMemberTotals(ctx)
}
