package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"voxtrace/internal/analysis"
	"voxtrace/internal/config"
)

// Entry is one archived terminal job.
type Entry struct {
	JobID        string
	State        analysis.LifecycleState
	Progress     int
	Results      json.RawMessage
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ArchivedAt   time.Time
}

// Store persists the history of jobs that reached a terminal state, backed
// by SQLite. The in-memory job map is authoritative while a job is live;
// the archive only ever sees finished jobs.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.ArchivePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) applyMigrations(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS analysis_history (
        job_id        TEXT PRIMARY KEY,
        state         TEXT NOT NULL,
        progress      INTEGER NOT NULL DEFAULT 0,
        results_json  TEXT,
        error_message TEXT,
        created_at    TEXT NOT NULL,
        updated_at    TEXT NOT NULL,
        archived_at   TEXT NOT NULL
    )`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Record upserts a terminal job. Re-archiving the same job id replaces the
// earlier row, so a retried job that fails again keeps a single entry.
func (s *Store) Record(ctx context.Context, job analysis.Job) error {
	if !job.State.IsTerminal() {
		return fmt.Errorf("archive non-terminal job %s in state %s", job.ID, job.State)
	}

	var results any
	if len(job.Results) > 0 {
		results = string(job.Results)
	}
	var errMsg any
	if job.ErrorMessage != "" {
		errMsg = job.ErrorMessage
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO analysis_history (
            job_id, state, progress, results_json, error_message,
            created_at, updated_at, archived_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(job_id) DO UPDATE SET
            state = excluded.state,
            progress = excluded.progress,
            results_json = excluded.results_json,
            error_message = excluded.error_message,
            updated_at = excluded.updated_at,
            archived_at = excluded.archived_at`,
		job.ID,
		string(job.State),
		job.Progress,
		results,
		errMsg,
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		job.UpdatedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}
	return nil
}

// Get returns one archived job by id.
func (s *Store) Get(ctx context.Context, jobID string) (Entry, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT job_id, state, progress, results_json, error_message,
            created_at, updated_at, archived_at
         FROM analysis_history WHERE job_id = ?`,
		jobID,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("query history row: %w", err)
	}
	return entry, true, nil
}

// List returns archived jobs, newest first, capped at limit. A limit of
// zero or less returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT job_id, state, progress, results_json, error_message,
            created_at, updated_at, archived_at
        FROM analysis_history ORDER BY archived_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Delete removes one archived job. Missing ids are not an error.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analysis_history WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("delete history row: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry      Entry
		state      string
		results    sql.NullString
		errMsg     sql.NullString
		createdAt  string
		updatedAt  string
		archivedAt string
	)
	if err := row.Scan(&entry.JobID, &state, &entry.Progress, &results, &errMsg,
		&createdAt, &updatedAt, &archivedAt); err != nil {
		return Entry{}, err
	}
	entry.State = analysis.LifecycleState(state)
	if results.Valid {
		entry.Results = json.RawMessage(results.String)
	}
	entry.ErrorMessage = errMsg.String
	entry.CreatedAt = parseTimestamp(createdAt)
	entry.UpdatedAt = parseTimestamp(updatedAt)
	entry.ArchivedAt = parseTimestamp(archivedAt)
	return entry, nil
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
