// Package journal keeps the transport update cursor and a log of ingested messages in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Status of one ingest attempt.
const (
	StatusWritten = "written"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Entry is one row of the ingest log.
type Entry struct {
	ID        string
	ChatID    int64
	MessageID int64
	Path      string
	Mode      string
	Status    string
	Kind      string
	Error     string
	CreatedAt time.Time
}

// Store is the SQLite-backed journal.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create journal directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open journal: %w", err)
	}
	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Cursor returns the last processed update id for a transport, or 0.
func (s *Store) Cursor(ctx context.Context, name string) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cursor WHERE name = ?`, name).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor %s: %w", name, err)
	}
	return v, nil
}

// SetCursor records id unless a later one is already stored.
func (s *Store) SetCursor(ctx context.Context, name string, id int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cursor (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		 WHERE excluded.value > cursor.value`,
		name, id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("write cursor %s: %w", name, err)
	}
	return nil
}

// Record appends e to the ingest log, filling ID and CreatedAt when unset.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_log (id, chat_id, message_id, path, mode, status, kind, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ChatID, e.MessageID, e.Path, e.Mode, e.Status, e.Kind, e.Error, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record ingest entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, message_id, path, mode, status, kind, error, created_at
		 FROM ingest_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ChatID, &e.MessageID, &e.Path, &e.Mode, &e.Status, &e.Kind, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of log entries per status.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM ingest_log GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// Prune deletes log entries older than the retention window and returns how many were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ingest_log WHERE created_at < ?`, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("prune ingest log: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}
