// Package store persists registered persons and attendance events in a
// local SQLite file.
package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Text layouts used in the persisted tables.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// StatusPresent is the default status written on every event.
const StatusPresent = "Present"

// Store wraps the SQLite handle. It is not safe for concurrent writers;
// the application serializes all access on its run loop.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the attendance database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS persons (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		card_id       TEXT UNIQUE,
		name          TEXT NOT NULL,
		department    TEXT NOT NULL DEFAULT '',
		position      TEXT NOT NULL DEFAULT '',
		registered_on TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS attendance (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		card_id  TEXT NOT NULL,
		name     TEXT NOT NULL,
		time_in  TEXT NOT NULL,
		time_out TEXT,
		date     TEXT NOT NULL,
		status   TEXT NOT NULL DEFAULT 'Present'
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_card_date ON attendance(card_id, date);
	CREATE INDEX IF NOT EXISTS idx_attendance_date      ON attendance(date);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Backup writes a raw copy of the database file to dst. The WAL is
// checkpointed first so the copy is self-contained.
func (s *Store) Backup(dst string) error {
	if _, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open db file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("copy backup: %w", err)
	}
	return out.Close()
}
