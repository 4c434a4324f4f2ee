package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	revision   INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore persists entries in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for a
// throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps writers serialized and ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize sqlite database: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Name implements Store.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	var entry Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT value, revision FROM kv WHERE key = ?`, key,
	).Scan(&entry.Value, &entry.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return &entry, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	var revision uint64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO kv (key, value, revision, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			revision = kv.revision + 1,
			updated_at = excluded.updated_at
		RETURNING revision`,
		key, value, time.Now().UnixMilli(),
	).Scan(&revision)
	if err != nil {
		return 0, fmt.Errorf("failed to write %q: %w", key, err)
	}
	return revision, nil
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, key string, value []byte, expected uint64) (uint64, error) {
	var row *sql.Row
	if expected == 0 {
		row = s.db.QueryRowContext(ctx, `
			INSERT INTO kv (key, value, revision, updated_at) VALUES (?, ?, 1, ?)
			ON CONFLICT(key) DO NOTHING
			RETURNING revision`,
			key, value, time.Now().UnixMilli(),
		)
	} else {
		row = s.db.QueryRowContext(ctx, `
			UPDATE kv SET value = ?, revision = revision + 1, updated_at = ?
			WHERE key = ? AND revision = ?
			RETURNING revision`,
			value, time.Now().UnixMilli(), key, expected,
		)
	}

	var revision uint64
	err := row.Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrRevisionMismatch
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update %q: %w", key, err)
	}
	return revision, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
