package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

const schemaVersion = 2

var migrations = []migration{
	{
		Version:     1,
		Description: "update cursor and ingest log",
		SQL: `
		CREATE TABLE IF NOT EXISTS cursor (
			name        TEXT PRIMARY KEY,
			value       INTEGER NOT NULL,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS ingest_log (
			id          TEXT PRIMARY KEY,
			chat_id     INTEGER NOT NULL,
			message_id  INTEGER NOT NULL,
			path        TEXT DEFAULT '',
			mode        TEXT DEFAULT '',
			status      TEXT NOT NULL,
			error       TEXT DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_ingest_time ON ingest_log(created_at);
		`,
	},
	{
		Version:     2,
		Description: "error kind on ingest log",
		SQL: `
		ALTER TABLE ingest_log ADD COLUMN kind TEXT DEFAULT '';
		CREATE INDEX IF NOT EXISTS idx_ingest_chat ON ingest_log(chat_id, message_id);
		`,
	},
}

// runMigrations applies pending migrations, tracked in schema_version.
func runMigrations(db *sql.DB, logger *slog.Logger) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			description TEXT,
			applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		logger.Info("applying journal migration", "version", m.Version, "description", m.Description)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration v%d: %w", m.Version, err)
		}
		for _, stmt := range splitSQL(m.SQL) {
			if _, err := tx.Exec(stmt); err != nil {
				if isAlreadyApplied(err) {
					logger.Debug("migration statement skipped (already applied)", "version", m.Version)
					continue
				}
				tx.Rollback()
				return fmt.Errorf("migration v%d: %w", m.Version, err)
			}
		}
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

func isAlreadyApplied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

func splitSQL(s string) []string {
	var out []string
	for _, stmt := range strings.Split(s, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// SchemaVersion returns the highest applied migration, or 0 for a fresh database.
func SchemaVersion(db *sql.DB) (int, error) {
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&name)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return version, nil
}
