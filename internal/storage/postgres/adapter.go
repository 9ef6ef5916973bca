package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/lib/pq"

	"github.com/mcpherson-lab/pubsync/internal/domain"
	"github.com/mcpherson-lab/pubsync/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		dry_run BOOLEAN NOT NULL,
		considered INTEGER NOT NULL,
		created_count INTEGER NOT NULL,
		skipped_existing INTEGER NOT NULL,
		skipped_cap INTEGER NOT NULL,
		skipped_invalid INTEGER NOT NULL,
		fetch_failed INTEGER NOT NULL,
		write_failed INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);

	CREATE TABLE IF NOT EXISTS sync_run_members (
		run_id TEXT NOT NULL,
		username TEXT NOT NULL,
		inactive BOOLEAN NOT NULL DEFAULT FALSE,
		considered INTEGER NOT NULL,
		created_count INTEGER NOT NULL,
		skipped_existing INTEGER NOT NULL,
		skipped_cap INTEGER NOT NULL,
		skipped_invalid INTEGER NOT NULL,
		fetch_failed INTEGER NOT NULL,
		write_failed INTEGER NOT NULL,
		errors JSONB NOT NULL DEFAULT '[]',
		PRIMARY KEY (run_id, username)
	);

	CREATE INDEX IF NOT EXISTS idx_sync_run_members_username ON sync_run_members(username);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRun saves a finished run and its per-member summaries
func (s *postgresStorage) SaveRun(ctx context.Context, run *domain.SyncRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_runs
			(id, started_at, finished_at, dry_run, considered, created_count,
			 skipped_existing, skipped_cap, skipped_invalid, fetch_failed, write_failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			considered = EXCLUDED.considered,
			created_count = EXCLUDED.created_count,
			skipped_existing = EXCLUDED.skipped_existing,
			skipped_cap = EXCLUDED.skipped_cap,
			skipped_invalid = EXCLUDED.skipped_invalid,
			fetch_failed = EXCLUDED.fetch_failed,
			write_failed = EXCLUDED.write_failed
	`,
		run.ID, run.StartedAt, run.FinishedAt, run.DryRun,
		run.Totals.Considered, run.Totals.Created, run.Totals.SkippedExisting,
		run.Totals.SkippedCap, run.Totals.SkippedInvalid,
		run.Totals.FetchFailed, run.Totals.WriteFailed,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_run_members
			(run_id, username, inactive, considered, created_count,
			 skipped_existing, skipped_cap, skipped_invalid, fetch_failed, write_failed, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, username) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range run.Members {
		errorsJSON, err := json.Marshal(m.Errors)
		if err != nil {
			return err
		}
		if m.Errors == nil {
			errorsJSON = []byte("[]")
		}
		_, err = stmt.ExecContext(ctx,
			run.ID, m.Username, m.Inactive,
			m.Considered, m.Created, m.SkippedExisting, m.SkippedCap,
			m.SkippedInvalid, m.FetchFailed, m.WriteFailed, string(errorsJSON),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRun retrieves one run with its member summaries, or nil when absent
func (s *postgresStorage) GetRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, considered, created_count,
		       skipped_existing, skipped_cap, skipped_invalid, fetch_failed, write_failed
		FROM sync_runs WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadMembers(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRuns retrieves the most recent runs, newest first
func (s *postgresStorage) GetRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, considered, created_count,
		       skipped_existing, skipped_cap, skipped_invalid, fetch_failed, write_failed
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.SyncRun
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, run := range runs {
		if err := s.loadMembers(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *postgresStorage) scanRun(row rowScanner) (*domain.SyncRun, error) {
	var run domain.SyncRun
	err := row.Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.DryRun,
		&run.Totals.Considered, &run.Totals.Created, &run.Totals.SkippedExisting,
		&run.Totals.SkippedCap, &run.Totals.SkippedInvalid,
		&run.Totals.FetchFailed, &run.Totals.WriteFailed,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *postgresStorage) loadMembers(ctx context.Context, run *domain.SyncRun) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, inactive, considered, created_count, skipped_existing,
		       skipped_cap, skipped_invalid, fetch_failed, write_failed, errors
		FROM sync_run_members
		WHERE run_id = $1
		ORDER BY username
	`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.MemberSummary
		var errorsJSON string
		err := rows.Scan(
			&m.Username, &m.Inactive, &m.Considered, &m.Created, &m.SkippedExisting,
			&m.SkippedCap, &m.SkippedInvalid, &m.FetchFailed, &m.WriteFailed, &errorsJSON,
		)
		if err != nil {
			return err
		}
		if errorsJSON != "" {
			_ = json.Unmarshal([]byte(errorsJSON), &m.Errors)
		}
		run.Members = append(run.Members, &m)
	}
	return rows.Err()
}

// GetMemberTotals aggregates lifetime totals per member over non-dry runs
func (s *postgresStorage) GetMemberTotals(ctx context.Context) ([]*domain.MemberStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rm.username, COUNT(*), SUM(rm.created_count), SUM(rm.fetch_failed), MAX(r.started_at)
		FROM sync_run_members rm
		JOIN sync_runs r ON r.id = rm.run_id
		WHERE r.dry_run = FALSE AND rm.inactive = FALSE
		GROUP BY rm.username
		ORDER BY rm.username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*domain.MemberStats
	for rows.Next() {
		var st domain.MemberStats
		var lastRun sql.NullTime
		if err := rows.Scan(&st.Username, &st.Runs, &st.Created, &st.FetchFailed, &lastRun); err != nil {
			return nil, err
		}
		if lastRun.Valid {
			st.LastRunAt = &lastRun.Time
		}
		stats = append(stats, &st)
	}
	return stats, rows.Err()
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
