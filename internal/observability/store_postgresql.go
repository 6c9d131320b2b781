package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertTraceSQL = `
	INSERT INTO agent_traces (id, name, project_name, start_time, end_time, input, output, metadata, tags)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING`

// PostgreSQLStore implements TraceStore for PostgreSQL.
type PostgreSQLStore struct {
	pool          *pgxpool.Pool
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewPostgreSQLStore creates the agent_traces table if needed and starts the
// retention loop when retentionDays > 0. The caller owns pool.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS agent_traces (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			project_name TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			input JSONB,
			output JSONB,
			metadata JSONB,
			tags TEXT[]
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_traces table: %w", err)
	}

	for _, idx := range []string{
		"CREATE INDEX IF NOT EXISTS idx_agent_traces_start_time ON agent_traces(start_time)",
		"CREATE INDEX IF NOT EXISTS idx_agent_traces_name ON agent_traces(name)",
		"CREATE INDEX IF NOT EXISTS idx_agent_traces_metadata_gin ON agent_traces USING GIN (metadata)",
	} {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &PostgreSQLStore{
		pool:          pool,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}
	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, store.cleanup)
	}
	return store, nil
}

// WriteBatch inserts small batches row by row and larger ones in a pgx.Batch
// inside a transaction.
func (s *PostgreSQLStore) WriteBatch(ctx context.Context, traces []*Trace) error {
	if len(traces) == 0 {
		return nil
	}
	if len(traces) < 10 {
		return s.writeBatchSmall(ctx, traces)
	}
	return s.writeBatchLarge(ctx, traces)
}

func (s *PostgreSQLStore) writeBatchSmall(ctx context.Context, traces []*Trace) error {
	var errs []error
	for _, t := range traces {
		if _, err := s.pool.Exec(ctx, insertTraceSQL, traceArgs(t)...); err != nil {
			slog.Warn("failed to insert trace", "error", err, "id", t.ID)
			errs = append(errs, fmt.Errorf("insert %s: %w", t.ID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to insert %d of %d traces: %w", len(errs), len(traces), errors.Join(errs...))
	}
	return nil
}

func (s *PostgreSQLStore) writeBatchLarge(ctx context.Context, traces []*Trace) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, t := range traces {
		batch.Queue(insertTraceSQL, traceArgs(t)...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert trace batch of %d: %w", len(traces), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func traceArgs(t *Trace) []any {
	return []any{
		t.ID, t.Name, t.ProjectName, t.StartTime, t.EndTime,
		jsonbValue(t.Input, t.ID), jsonbValue(t.Output, t.ID), jsonbValue(t.Metadata, t.ID),
		t.Tags,
	}
}

// jsonbValue returns raw JSON bytes for a JSONB column, or nil for empty maps.
func jsonbValue(m map[string]any, traceID string) []byte {
	if len(m) == 0 {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		slog.Warn("failed to marshal trace field", "error", err, "id", traceID)
		return []byte("{}")
	}
	return data
}

// Flush is a no-op; writes are synchronous.
func (s *PostgreSQLStore) Flush(_ context.Context) error { return nil }

// Close stops the cleanup goroutine. The pool belongs to the storage layer.
func (s *PostgreSQLStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

func (s *PostgreSQLStore) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	result, err := s.pool.Exec(ctx, "DELETE FROM agent_traces WHERE start_time < $1", cutoff)
	if err != nil {
		slog.Error("failed to clean up old traces", "error", err)
		return
	}
	if result.RowsAffected() > 0 {
		slog.Info("cleaned up old traces", "deleted", result.RowsAffected())
	}
}
