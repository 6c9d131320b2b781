package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"
)

// sqliteTimeFormat is fixed-width so stored_at compares correctly as text.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store on a SQLite connection.
type SQLiteStore struct {
	db     *sql.DB
	closer io.Closer
}

// NewSQLiteStore creates the cache_entries table if it doesn't exist.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			stored_at TEXT NOT NULL,
			input JSON,
			response JSON NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_entries table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_cache_entries_stored_at ON cache_entries(stored_at)"); err != nil {
		return nil, fmt.Errorf("failed to create cache_entries index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load retrieves the entry for key.
func (s *SQLiteStore) Load(ctx context.Context, key string) (*Entry, error) {
	var (
		storedAt string
		input    sql.NullString
		response string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT stored_at, input, response FROM cache_entries WHERE key = ?`, key,
	).Scan(&storedAt, &input, &response)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query cache entry: %w", err)
	}

	ts, err := time.Parse(sqliteTimeFormat, storedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid stored_at for cache entry %s: %w", key, err)
	}

	entry := &Entry{Key: key, StoredAt: ts, Response: []byte(response)}
	if input.Valid {
		entry.Input = []byte(input.String)
	}
	return entry, nil
}

// Save upserts the entry.
func (s *SQLiteStore) Save(ctx context.Context, entry *Entry) error {
	var input interface{}
	if len(entry.Input) > 0 {
		input = string(entry.Input)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, stored_at, input, response) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET stored_at = excluded.stored_at, input = excluded.input, response = excluded.response
	`, entry.Key, entry.StoredAt.UTC().Format(sqliteTimeFormat), input, string(entry.Response))
	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Sweep deletes all entries stored before cutoff.
func (s *SQLiteStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE stored_at < ?`, cutoff.UTC().Format(sqliteTimeFormat))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep cache entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept cache entries: %w", err)
	}
	return int(n), nil
}

// Close releases the underlying storage when the store owns it.
func (s *SQLiteStore) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
