package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"healthflow/config"
	"healthflow/internal/httpclient"
	"healthflow/internal/storage"
)

// Result holds the configured tracer and the storage it writes to.
// The caller must call Close during shutdown.
type Result struct {
	Tracer  Tracer
	Storage storage.Storage
}

// Close flushes the tracer, then closes the storage. Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Tracer != nil {
		if err := r.Tracer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tracer close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
		r.Storage = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New builds the tracer from configuration. Traces go to Opik when an API key
// is set and to the local database when a storage type is set; with neither,
// the tracer is a NoopTracer. metrics may be nil.
func New(ctx context.Context, cfg *config.Config, metrics *Metrics) (*Result, error) {
	var stores multiStore
	result := &Result{}

	if cfg.Opik.APIKey != "" {
		cc := httpclient.CollectorConfig()
		opik, err := NewOpikStore(OpikConfig{
			URL:         cfg.Opik.URL,
			APIKey:      cfg.Opik.APIKey,
			Workspace:   cfg.Opik.Workspace,
			ProjectName: cfg.Opik.ProjectName,
		}, httpclient.NewHTTPClient(&cc))
		if err != nil {
			return nil, err
		}
		stores = append(stores, opik)
		slog.Info("opik tracing enabled", "project", cfg.Opik.ProjectName, "workspace", cfg.Opik.Workspace)
	}

	if cfg.Storage.Type != "" {
		st, err := storage.New(ctx, storage.FromConfig(cfg.Storage))
		if err != nil {
			_ = stores.Close()
			return nil, fmt.Errorf("failed to create trace storage: %w", err)
		}
		ts, err := NewTraceStore(ctx, st, cfg.Tracing.RetentionDays, metrics)
		if err != nil {
			_ = st.Close()
			_ = stores.Close()
			return nil, err
		}
		stores = append(stores, ts)
		result.Storage = st
		slog.Info("local trace storage enabled", "type", st.Type(), "retention_days", cfg.Tracing.RetentionDays)
	}

	switch len(stores) {
	case 0:
		result.Tracer = NoopTracer{}
		return result, nil
	case 1:
		result.Tracer = NewRecorder(stores[0], recorderConfig(cfg), metrics)
	default:
		result.Tracer = NewRecorder(stores, recorderConfig(cfg), metrics)
	}
	return result, nil
}

// NewTraceStore creates the TraceStore matching the storage backend.
func NewTraceStore(ctx context.Context, st storage.Storage, retentionDays int, metrics *Metrics) (TraceStore, error) {
	switch st.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(st.SQLiteDB(), retentionDays)
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(ctx, st.PostgreSQLPool(), retentionDays)
	case storage.TypeMongoDB:
		return NewMongoDBStore(ctx, st.MongoDatabase(), retentionDays, metrics)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", st.Type())
	}
}

func recorderConfig(cfg *config.Config) RecorderConfig {
	return RecorderConfig{
		BufferSize:    cfg.Tracing.BufferSize,
		FlushInterval: cfg.Tracing.FlushInterval,
		ProjectName:   cfg.Opik.ProjectName,
	}
}
