// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the HealthFlow server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"healthflow/config"
	"healthflow/internal/agents"
	"healthflow/internal/cache"
	"healthflow/internal/httpclient"
	"healthflow/internal/llm"
	"healthflow/internal/observability"
	"healthflow/internal/server"
)

// App represents the main application with all its dependencies.
type App struct {
	config    *config.Config
	metrics   *observability.Metrics
	responses *cache.ResponseCache
	tracing   *observability.Result
	server    *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}

	app := &App{
		config:  cfg,
		metrics: observability.NewMetrics(),
	}

	responses, err := NewResponseCache(cfg, app.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize response cache: %w", err)
	}
	app.responses = responses

	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize gemini client: %w", err), app.responses.Close())
	}

	tracing, err := observability.New(ctx, cfg, app.metrics)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize tracing: %w", err), app.responses.Close())
	}
	app.tracing = tracing

	client := llm.New(generator, responses, llm.Config{
		DefaultModel:   cfg.Gemini.Model,
		MaxAttempts:    cfg.LLM.MaxAttempts,
		InitialBackoff: cfg.LLM.InitialBackoff,
		MaxBackoff:     cfg.LLM.MaxBackoff,
		AttemptTimeout: cfg.LLM.AttemptTimeout,
	}, llm.WithObserver(app.metrics))

	deps := agents.Deps{
		Client:  client,
		Tracer:  tracing.Tracer,
		Metrics: app.metrics,
		Models: agents.Models{
			Default: cfg.Gemini.Model,
			Workout: cfg.Gemini.WorkoutModel,
		},
	}

	app.logStartupInfo(client.Configured())

	app.server = server.New(deps, &server.Config{
		MasterKey:          cfg.Server.MasterKey,
		BodySizeLimit:      cfg.Server.BodySizeLimit,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		MetricsEnabled:     cfg.Metrics.Enabled,
		MetricsEndpoint:    cfg.Metrics.Endpoint,
		Metrics:            app.metrics,
	})

	return app, nil
}

// NewResponseCache opens the configured cache backend. metrics may be nil.
func NewResponseCache(cfg *config.Config, metrics *observability.Metrics) (*cache.ResponseCache, error) {
	store, err := cache.NewStore(cache.Config{
		Type:       cfg.Cache.Type,
		Dir:        cfg.Cache.Dir,
		SQLitePath: cfg.Cache.SQLitePath,
		RedisURL:   cfg.Cache.RedisURL,
	})
	if err != nil {
		return nil, err
	}

	var opts []cache.Option
	if metrics != nil {
		opts = append(opts, cache.WithObserver(metrics))
	}
	return cache.NewResponseCache(store, opts...), nil
}

// newGenerator returns nil when no API key is configured; the client then
// reports every call as unconfigured and agents use their fallbacks.
func newGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, nil
	}
	hc := httpclient.GeminiConfig(cfg.LLM.AttemptTimeout)
	gen, err := llm.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, httpclient.NewHTTPClient(&hc))
	if err != nil {
		return nil, err
	}
	return gen, nil
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server
}

// Shutdown gracefully tears down app components in dependency order:
// HTTP server, then the trace recorder (flushing buffered traces) and its
// storage, then the response cache backend.
//
// Shutdown is idempotent. It attempts every step and returns the joined errors.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.tracing != nil {
		if err := a.tracing.Close(); err != nil {
			slog.Error("tracing close error", "error", err)
			errs = append(errs, fmt.Errorf("tracing close: %w", err))
		}
	}

	if a.responses != nil {
		if err := a.responses.Close(); err != nil {
			slog.Error("response cache close error", "error", err)
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo(geminiConfigured bool) {
	cfg := a.config

	if cfg.Server.MasterKey == "" {
		slog.Warn("HEALTHFLOW_MASTER_KEY not set - API is open to unauthenticated access")
	} else {
		slog.Info("authentication enabled", "mode", "master_key")
	}

	if geminiConfigured {
		slog.Info("gemini enabled", "model", cfg.Gemini.Model, "workout_model", cfg.Gemini.WorkoutModel)
	} else {
		slog.Warn("GEMINI_API_KEY not set - agents will answer from rule-based fallbacks")
	}

	slog.Info("response cache configured", "type", cfg.Cache.Type, "enabled", a.responses.Enabled())

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	if cfg.Storage.Type != "" {
		slog.Info("trace storage configured",
			"type", cfg.Storage.Type,
			"buffer_size", cfg.Tracing.BufferSize,
			"flush_interval", cfg.Tracing.FlushInterval,
			"retention_days", cfg.Tracing.RetentionDays,
		)
	}
}
