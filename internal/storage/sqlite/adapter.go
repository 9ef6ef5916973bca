package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mcpherson-lab/pubsync/internal/domain"
	"github.com/mcpherson-lab/pubsync/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		dry_run INTEGER NOT NULL,
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
		inactive INTEGER NOT NULL DEFAULT 0,
		considered INTEGER NOT NULL,
		created_count INTEGER NOT NULL,
		skipped_existing INTEGER NOT NULL,
		skipped_cap INTEGER NOT NULL,
		skipped_invalid INTEGER NOT NULL,
		fetch_failed INTEGER NOT NULL,
		write_failed INTEGER NOT NULL,
		errors TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (run_id, username)
	);

	CREATE INDEX IF NOT EXISTS idx_sync_run_members_username ON sync_run_members(username);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRun saves a finished run and its per-member summaries
func (s *sqliteStorage) SaveRun(ctx context.Context, run *domain.SyncRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	dryRun := 0
	if run.DryRun {
		dryRun = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_runs
			(id, started_at, finished_at, dry_run, considered, created_count,
			 skipped_existing, skipped_cap, skipped_invalid, fetch_failed, write_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.StartedAt, run.FinishedAt, dryRun,
		run.Totals.Considered, run.Totals.Created, run.Totals.SkippedExisting,
		run.Totals.SkippedCap, run.Totals.SkippedInvalid,
		run.Totals.FetchFailed, run.Totals.WriteFailed,
	)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO sync_run_members
			(run_id, username, inactive, considered, created_count,
			 skipped_existing, skipped_cap, skipped_invalid, fetch_failed, write_failed, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		inactive := 0
		if m.Inactive {
			inactive = 1
		}
		_, err = stmt.ExecContext(ctx,
			run.ID, m.Username, inactive,
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
func (s *sqliteStorage) GetRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, considered, created_count,
		       skipped_existing, skipped_cap, skipped_invalid, fetch_failed, write_failed
		FROM sync_runs WHERE id = ?
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
func (s *sqliteStorage) GetRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, considered, created_count,
		       skipped_existing, skipped_cap, skipped_invalid, fetch_failed, write_failed
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?
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

func (s *sqliteStorage) scanRun(row rowScanner) (*domain.SyncRun, error) {
	var run domain.SyncRun
	var dryRun int
	err := row.Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &dryRun,
		&run.Totals.Considered, &run.Totals.Created, &run.Totals.SkippedExisting,
		&run.Totals.SkippedCap, &run.Totals.SkippedInvalid,
		&run.Totals.FetchFailed, &run.Totals.WriteFailed,
	)
	if err != nil {
		return nil, err
	}
	run.DryRun = dryRun == 1
	return &run, nil
}

func (s *sqliteStorage) loadMembers(ctx context.Context, run *domain.SyncRun) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, inactive, considered, created_count, skipped_existing,
		       skipped_cap, skipped_invalid, fetch_failed, write_failed, errors
		FROM sync_run_members
		WHERE run_id = ?
		ORDER BY username
	`, run.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.MemberSummary
		var inactive int
		var errorsJSON string
		err := rows.Scan(
			&m.Username, &inactive, &m.Considered, &m.Created, &m.SkippedExisting,
			&m.SkippedCap, &m.SkippedInvalid, &m.FetchFailed, &m.WriteFailed, &errorsJSON,
		)
		if err != nil {
			return err
		}
		m.Inactive = inactive == 1
		if errorsJSON != "" {
			_ = json.Unmarshal([]byte(errorsJSON), &m.Errors)
		}
		run.Members = append(run.Members, &m)
	}
	return rows.Err()
}

// GetMemberTotals aggregates lifetime totals per member over non-dry runs
func (s *sqliteStorage) GetMemberTotals(ctx context.Context) ([]*domain.MemberStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rm.username, COUNT(*), SUM(rm.created_count), SUM(rm.fetch_failed), MAX(r.started_at)
		FROM sync_run_members rm
		JOIN sync_runs r ON r.id = rm.run_id
		WHERE r.dry_run = 0 AND rm.inactive = 0
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
		var lastRun sql.NullString
		if err := rows.Scan(&st.Username, &st.Runs, &st.Created, &st.FetchFailed, &lastRun); err != nil {
			return nil, err
		}
		// MAX() strips the column's declared type, so the driver hands the
		// timestamp back as text
		if lastRun.Valid {
			if ts, err := parseTimestamp(lastRun.String); err == nil {
				st.LastRunAt = &ts
			}
		}
		stats = append(stats, &st)
	}
	return stats, rows.Err()
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Close closes the database connection
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
