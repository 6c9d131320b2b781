package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SQLite allows 999 bound parameters per statement.
const (
	maxSQLiteParams      = 999
	columnsPerTrace      = 9
	maxTracesPerStatment = maxSQLiteParams / columnsPerTrace
)

// sqliteTimeFormat is fixed width so stored timestamps compare correctly as text.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements TraceStore on the agent_traces table.
type SQLiteStore struct {
	db            *sql.DB
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewSQLiteStore creates the agent_traces table if needed and starts the
// retention loop when retentionDays > 0. The caller owns db.
func NewSQLiteStore(db *sql.DB, retentionDays int) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_traces (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			project_name TEXT NOT NULL DEFAULT '',
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			input JSON,
			output JSON,
			metadata JSON,
			tags JSON
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_traces table: %w", err)
	}

	for _, idx := range []string{
		"CREATE INDEX IF NOT EXISTS idx_agent_traces_start_time ON agent_traces(start_time)",
		"CREATE INDEX IF NOT EXISTS idx_agent_traces_name ON agent_traces(name)",
	} {
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &SQLiteStore{
		db:            db,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}
	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, store.cleanup)
	}
	return store, nil
}

// WriteBatch inserts traces in chunks that fit SQLite's parameter limit.
func (s *SQLiteStore) WriteBatch(ctx context.Context, traces []*Trace) error {
	for i := 0; i < len(traces); i += maxTracesPerStatment {
		end := min(i+maxTracesPerStatment, len(traces))
		chunk := traces[i:end]

		placeholders := make([]string, len(chunk))
		values := make([]any, 0, len(chunk)*columnsPerTrace)
		for j, t := range chunk {
			placeholders[j] = "(?, ?, ?, ?, ?, ?, ?, ?, ?)"
			values = append(values,
				t.ID,
				t.Name,
				t.ProjectName,
				t.StartTime.UTC().Format(sqliteTimeFormat),
				t.EndTime.UTC().Format(sqliteTimeFormat),
				jsonColumn(t.Input, t.ID),
				jsonColumn(t.Output, t.ID),
				jsonColumn(t.Metadata, t.ID),
				jsonColumn(t.Tags, t.ID),
			)
		}

		query := `INSERT OR IGNORE INTO agent_traces
			(id, name, project_name, start_time, end_time, input, output, metadata, tags) VALUES ` +
			strings.Join(placeholders, ",")
		if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
			return fmt.Errorf("failed to insert trace batch %d: %w", i/maxTracesPerStatment, err)
		}
	}
	return nil
}

// Flush is a no-op; writes are synchronous.
func (s *SQLiteStore) Flush(_ context.Context) error { return nil }

// Close stops the cleanup goroutine. The database belongs to the storage layer.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

// Count returns the number of stored traces with the given name, or all traces when name is empty.
func (s *SQLiteStore) Count(ctx context.Context, name string) (int, error) {
	query, args := "SELECT COUNT(*) FROM agent_traces", []any{}
	if name != "" {
		query += " WHERE name = ?"
		args = append(args, name)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count traces: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) cleanup() {
	s.deleteBefore(time.Now().AddDate(0, 0, -s.retentionDays))
}

func (s *SQLiteStore) deleteBefore(cutoff time.Time) int64 {
	result, err := s.db.Exec("DELETE FROM agent_traces WHERE start_time < ?", cutoff.UTC().Format(sqliteTimeFormat))
	if err != nil {
		slog.Error("failed to clean up old traces", "error", err)
		return 0
	}
	n, err := result.RowsAffected()
	if err == nil && n > 0 {
		slog.Info("cleaned up old traces", "deleted", n)
	}
	return n
}

// jsonColumn marshals v for a JSON column; nil and empty values become NULL.
func jsonColumn(v any, traceID string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		if len(x) == 0 {
			return nil
		}
	case []string:
		if len(x) == 0 {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal trace field", "error", err, "id", traceID)
		return "{}"
	}
	return string(data)
}
