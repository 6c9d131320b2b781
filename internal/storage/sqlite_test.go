package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthflow/config"
)

// Cache entries and agent traces share one SQLite file when both use the
// sqlite backend; concurrent writers must not hit SQLITE_BUSY.
func TestSQLiteConcurrentWriteSafety(t *testing.T) {
	store, err := NewSQLite(SQLiteConfig{Path: filepath.Join(t.TempDir(), "nested", "test.db")})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, TypeSQLite, store.Type())
	assert.Nil(t, store.PostgreSQLPool())
	assert.Nil(t, store.MongoDatabase())
	require.NoError(t, store.Ping(t.Context()))

	db := store.SQLiteDB()
	for _, table := range []string{"test_cache", "test_traces"} {
		_, err := db.Exec(fmt.Sprintf(`CREATE TABLE %s (id TEXT PRIMARY KEY, data TEXT)`, table))
		require.NoError(t, err)
	}

	const goroutines = 10
	const insertsPerGoroutine = 50

	var wg sync.WaitGroup
	errs := make(chan error, goroutines*insertsPerGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			table := "test_cache"
			if id%2 == 1 {
				table = "test_traces"
			}
			for j := 0; j < insertsPerGoroutine; j++ {
				_, err := db.ExecContext(context.Background(),
					fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?)`, table),
					fmt.Sprintf("%d-%d", id, j), "payload")
				if err != nil {
					errs <- fmt.Errorf("goroutine %d insert %d into %s: %w", id, j, table, err)
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent write error: %v", err)
	}

	want := (goroutines / 2) * insertsPerGoroutine
	for _, table := range []string{"test_cache", "test_traces"} {
		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))
		assert.Equal(t, want, count, table)
	}
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(t.Context(), Config{Type: "cassandra"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage type")
}

func TestNew_MissingURLs(t *testing.T) {
	_, err := New(t.Context(), Config{Type: TypePostgreSQL})
	assert.ErrorContains(t, err, "PostgreSQL URL is required")

	_, err = New(t.Context(), Config{Type: TypeMongoDB})
	assert.ErrorContains(t, err, "MongoDB URL is required")
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.StorageConfig{
		Type:       TypePostgreSQL,
		SQLite:     config.SQLiteConfig{Path: "traces.db"},
		PostgreSQL: config.PostgreSQLConfig{URL: "postgres://localhost/hf", MaxConns: 4},
		MongoDB:    config.MongoDBConfig{URL: "mongodb://localhost", Database: "hf"},
	})

	assert.Equal(t, TypePostgreSQL, cfg.Type)
	assert.Equal(t, "traces.db", cfg.SQLite.Path)
	assert.Equal(t, 4, cfg.PostgreSQL.MaxConns)
	assert.Equal(t, "hf", cfg.MongoDB.Database)
}
