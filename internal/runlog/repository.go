// Package runlog persists the outcome of each harvesting pass to SQLite.
package runlog

import (
	"database/sql"
	"fmt"
	"time"

	"nathanbeddoewebdev/cloudharvest/internal/database"
)

// Repository defines the persistence interface for pass entries.
type Repository interface {
	Save(entry *Entry) error
	List(limit int) ([]Entry, error)
	ListByKind(kind string, limit int) ([]Entry, error)
	Prune(olderThan time.Duration) (int64, error)
	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// Open creates or opens the run log at the default path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("runlog: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS pass_runs (
            id           INTEGER PRIMARY KEY AUTOINCREMENT,
            started_at   TEXT    NOT NULL,
            provider     TEXT    NOT NULL DEFAULT '',
            kind         TEXT    NOT NULL,
            window_start TEXT    NOT NULL DEFAULT '',
            window_end   TEXT    NOT NULL DEFAULT '',
            records      INTEGER NOT NULL DEFAULT 0,
            failed       INTEGER NOT NULL DEFAULT 0,
            outcome      TEXT    NOT NULL DEFAULT '',
            error        TEXT    NOT NULL DEFAULT '',
            duration_ms  INTEGER NOT NULL DEFAULT 0
        );
        CREATE INDEX IF NOT EXISTS idx_pass_runs_started_at ON pass_runs(started_at);
        CREATE INDEX IF NOT EXISTS idx_pass_runs_kind ON pass_runs(kind);
    `
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("runlog: migration failed: %w", err)
	}
	return nil
}

// Save inserts a new entry and assigns its ID.
func (r *SQLiteRepository) Save(entry *Entry) error {
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(`
        INSERT INTO pass_runs (started_at, provider, kind, window_start, window_end, records, failed, outcome, error, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(entry.StartedAt), entry.Provider, entry.Kind,
		formatTime(entry.WindowStart), formatTime(entry.WindowEnd),
		entry.Records, entry.Failed, entry.Outcome, entry.Error, entry.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("runlog: insert failed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("runlog: failed to get last insert ID: %w", err)
	}
	entry.ID = id
	return nil
}

const selectColumns = `SELECT id, started_at, provider, kind, window_start, window_end, records, failed, outcome, error, duration_ms FROM pass_runs`

// List returns the most recent n entries, newest first.
func (r *SQLiteRepository) List(limit int) ([]Entry, error) {
	rows, err := r.db.Query(selectColumns+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ListByKind returns the most recent n entries for one resource kind.
func (r *SQLiteRepository) ListByKind(kind string, limit int) ([]Entry, error) {
	rows, err := r.db.Query(selectColumns+` WHERE kind = ? ORDER BY started_at DESC, id DESC LIMIT ?`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Prune deletes entries started before now minus olderThan.
func (r *SQLiteRepository) Prune(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().UTC().Add(-olderThan))
	result, err := r.db.Exec(`DELETE FROM pass_runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("runlog: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// formatTime uses a fixed-width layout so stored timestamps sort as text.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func scanRows(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			entry                       Entry
			startedAt, winStart, winEnd string
		)
		err := rows.Scan(
			&entry.ID, &startedAt, &entry.Provider, &entry.Kind, &winStart, &winEnd,
			&entry.Records, &entry.Failed, &entry.Outcome, &entry.Error, &entry.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("runlog: scan failed: %w", err)
		}
		entry.StartedAt = parseTime(startedAt)
		entry.WindowStart = parseTime(winStart)
		entry.WindowEnd = parseTime(winEnd)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
