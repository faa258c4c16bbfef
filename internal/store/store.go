// Package store provides the SQLite-backed object store with two record
// collections (files, shares) and their secondary indices.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when the requested identifier is absent.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when creation is attempted on an
	// existing identifier.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrStorageUnavailable wraps a failure to open the backing store.
	// It is fatal: there is no in-memory fallback.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Store is the persistent object store. Every exported method commits as
// a single transaction; callers serialize mutations per identifier.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create data directory: %v", ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrStorageUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enable foreign keys: %v", ErrStorageUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", ErrStorageUnavailable, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate ensures the required tables and secondary indices are present.
// Indices are derived from primary data, so re-running the statements is
// also the recovery path for an inconsistent index.
func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			size          INTEGER NOT NULL,
			type          TEXT NOT NULL,
			upload_time   DATETIME NOT NULL,
			last_modified DATETIME,
			thumbnail     TEXT NOT NULL DEFAULT '',
			content       BLOB,
			tags          TEXT NOT NULL DEFAULT '[]',
			description   TEXT NOT NULL DEFAULT '',
			is_shared     INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_name ON files(name)`,
		`CREATE INDEX IF NOT EXISTS idx_files_type ON files(type)`,
		`CREATE INDEX IF NOT EXISTS idx_files_upload_time ON files(upload_time)`,
		`CREATE INDEX IF NOT EXISTS idx_files_size ON files(size)`,
		`CREATE TABLE IF NOT EXISTS shares (
			id           TEXT PRIMARY KEY,
			file_id      TEXT NOT NULL,
			share_url    TEXT NOT NULL,
			password     TEXT NOT NULL DEFAULT '',
			expires_at   DATETIME,
			access_count INTEGER NOT NULL DEFAULT 0,
			max_access   INTEGER,
			created_at   DATETIME NOT NULL,
			is_public    INTEGER NOT NULL DEFAULT 1,
			qr_code      BLOB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shares_file_id ON shares(file_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shares_created_at ON shares(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

// isConstraintErr reports whether err is a SQLite uniqueness violation.
func isConstraintErr(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}
