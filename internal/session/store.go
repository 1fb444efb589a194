// Package session persists platform session state between runs.
// The only state a bot-API session needs is the last processed update
// offset, so a restart resumes the subscription where it left off
// instead of replaying old updates.
package session

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed session state store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the session database inside dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create session directory %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "session.sqlite")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open session database: %w", err)
	}

	// Single connection: SQLite writes serialize anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session database migration failed: %w", err)
	}

	logger.Debug("session store opened", "path", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_state (
		key        TEXT PRIMARY KEY,
		value      INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	_, err := s.db.Exec(schema)
	return err
}

const offsetKey = "update_offset"

// Offset returns the last persisted update offset, or 0 for a fresh session.
func (s *Store) Offset() (int, error) {
	var v int
	err := s.db.QueryRow(`SELECT value FROM session_state WHERE key = ?`, offsetKey).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read session offset: %w", err)
	}
	return v, nil
}

// SetOffset persists the update offset.
func (s *Store) SetOffset(offset int) error {
	_, err := s.db.Exec(`
		INSERT INTO session_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		offsetKey, offset)
	if err != nil {
		return fmt.Errorf("persist session offset: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
