package storage

import (
	"context"

	"github.com/mcpherson-lab/pubsync/internal/domain"
)

// Storage is the abstract interface for the run history store
type Storage interface {
	// Run operations
	SaveRun(ctx context.Context, run *domain.SyncRun) error
	GetRun(ctx context.Context, id string) (*domain.SyncRun, error)
	GetRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error)

	// Per-member lifetime totals across recorded (non-dry) runs
	GetMemberTotals(ctx context.Context) ([]*domain.MemberStats, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
