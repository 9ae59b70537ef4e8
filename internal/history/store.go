package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"segrun/internal/services"
)

const runColumns = "id, run_id, source_path, tool, model, frames, buckets, objects, missing_frames, status, error_message, elapsed_ms, started_at, finished_at"

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the ledger at path.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts a finished run and returns it with its row ID assigned.
func (s *Store) Record(ctx context.Context, run Run) (*Run, error) {
	if strings.TrimSpace(run.RunID) == "" {
		return nil, errors.New("run id is required")
	}
	if strings.TrimSpace(run.Tool) == "" {
		return nil, errors.New("tool is required")
	}
	if run.Status == "" {
		return nil, errors.New("status is required")
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt.Add(-run.Elapsed)
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (
            run_id, source_path, tool, model, frames, buckets, objects, missing_frames,
            status, error_message, elapsed_ms, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		nullableString(run.SourcePath),
		run.Tool,
		nullableString(run.Model),
		run.Frames,
		run.Buckets,
		run.Objects,
		run.MissingFrames,
		string(run.Status),
		nullableString(run.ErrorMessage),
		run.Elapsed.Milliseconds(),
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a run by row ID. A missing row returns nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// FindByRunID looks a run up by the identifier shown in logs.
func (s *Store) FindByRunID(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	return run, nil
}

// ListOptions filters List.
type ListOptions struct {
	Limit    int
	Statuses []services.Status
}

// List returns runs, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]any, 0, len(opts.Statuses)+1)
	if len(opts.Statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(opts.Statuses)) + `)`
		for _, status := range opts.Statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Prune removes runs that finished before cutoff and returns how many were
// deleted.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE finished_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every run.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}
