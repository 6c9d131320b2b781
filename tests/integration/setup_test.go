//go:build integration

package integration

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"healthflow/config"
	"healthflow/internal/app"
	"healthflow/tests/integration/dbassert"
)

// TestServerConfig configures how the test server is set up.
type TestServerConfig struct {
	// DBType is either "postgresql" or "mongodb"
	DBType string

	// MasterKey sets the authentication master key (empty = unsafe mode)
	MasterKey string
}

// TestServerFixture holds test server resources.
type TestServerFixture struct {
	// ServerURL is the base URL of the test server
	ServerURL string

	// App is the running application
	App *app.App

	// PgPool is the PostgreSQL connection pool (for DB assertions)
	PgPool *pgxpool.Pool

	// MongoDb is the MongoDB database (for DB assertions)
	MongoDb *mongo.Database

	cancelFunc context.CancelFunc
}

// SetupTestServer starts the app with trace storage on the given backend.
// No Gemini key is configured, so every agent answers from its fallback.
func SetupTestServer(t *testing.T, cfg TestServerConfig) *TestServerFixture {
	t.Helper()

	ctx, cancel := context.WithCancel(GetTestContext())

	fixture := &TestServerFixture{cancelFunc: cancel}
	switch cfg.DBType {
	case "postgresql":
		fixture.PgPool = GetPostgreSQLPool()
		dbassert.ClearTraces(t, fixture.PgPool)
	case "mongodb":
		fixture.MongoDb = GetMongoDatabase()
		dbassert.ClearTracesMongo(t, fixture.MongoDb)
	default:
		t.Fatalf("unsupported DBType %q", cfg.DBType)
	}

	port, err := findAvailablePort()
	require.NoError(t, err, "failed to find available port")

	application, err := app.New(ctx, buildAppConfig(t, cfg, port))
	require.NoError(t, err, "failed to create app")
	fixture.App = application

	fixture.ServerURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	go func() {
		_ = application.Start(fmt.Sprintf("127.0.0.1:%d", port))
	}()

	require.NoError(t, waitForServer(fixture.ServerURL+healthPath), "server failed to become healthy")
	t.Cleanup(func() { fixture.Shutdown(t) })
	return fixture
}

// FlushAndClose shuts the app down, which drains the trace recorder.
// Call this before making any DB assertions.
func (f *TestServerFixture) FlushAndClose(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, f.App.Shutdown(ctx), "failed to shutdown app")
}

// Shutdown releases the fixture. Safe after FlushAndClose.
func (f *TestServerFixture) Shutdown(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if f.App != nil {
		_ = f.App.Shutdown(ctx)
	}
	if f.cancelFunc != nil {
		f.cancelFunc()
	}
}

func buildAppConfig(t *testing.T, cfg TestServerConfig, port int) *config.Config {
	t.Helper()

	appCfg := &config.Config{
		Server: config.ServerConfig{
			Port:      fmt.Sprintf("%d", port),
			MasterKey: cfg.MasterKey,
		},
		Logging: config.LogConfig{Format: "json", Level: "warn"},
		Gemini: config.GeminiConfig{
			Model:        config.DefaultGeminiModel,
			WorkoutModel: config.DefaultWorkoutModel,
		},
		Cache: config.CacheConfig{Type: "none"},
		Opik:  config.OpikConfig{ProjectName: "healthflow-integration"},
		Storage: config.StorageConfig{
			Type: cfg.DBType,
		},
		Tracing: config.TracingConfig{
			BufferSize:    100,
			FlushInterval: time.Second,
		},
	}

	switch cfg.DBType {
	case "postgresql":
		appCfg.Storage.PostgreSQL = config.PostgreSQLConfig{URL: GetPostgreSQLURL(), MaxConns: 5}
	case "mongodb":
		appCfg.Storage.MongoDB = config.MongoDBConfig{URL: GetMongoURL(), Database: GetMongoDatabase().Name()}
	}
	return appCfg
}

// waitForServer polls the health endpoint until it answers 200.
func waitForServer(healthURL string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	for i := 0; i < 50; i++ {
		resp, err := client.Get(healthURL)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not become healthy within timeout")
}

// findAvailablePort finds an available TCP port on loopback.
func findAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = listener.Close() }()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
