package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthflow/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Gemini:  config.GeminiConfig{Model: config.DefaultGeminiModel, WorkoutModel: config.DefaultWorkoutModel},
		Cache:   config.CacheConfig{Type: "file", Dir: t.TempDir()},
		Metrics: config.MetricsConfig{Enabled: true, Endpoint: "/metrics"},
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)
}

func TestNew_ServesWithoutCredentials(t *testing.T) {
	app, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/hrv/analyze",
		strings.NewReader(`{"hrv_ms": 41.8, "baseline_hrv": 55, "resting_hr": 72, "sleep_hours": 6}`))
	app.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fallback":true`)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `healthflow_agent_results_total{agent="hrv_monitor",path="fallback"} 1`)
}

func TestNew_LocalTraceStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Type = "sqlite"
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "traces.db")

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/medical/parse", strings.NewReader(`{"surgery":"ACL"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, app.Shutdown(context.Background()))
}

func TestNew_UnknownCacheType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Type = "memcached"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cache type")
}

func TestShutdown_Idempotent(t *testing.T) {
	app, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)

	require.NoError(t, app.Shutdown(context.Background()))
	require.NoError(t, app.Shutdown(context.Background()))
}
