package cache

import (
	"fmt"

	"healthflow/internal/storage"
)

// Backend type constants
const (
	TypeFile   = "file"
	TypeRedis  = "redis"
	TypeSQLite = "sqlite"
	TypeNone   = "none"
)

// Config selects and configures a cache backend.
type Config struct {
	// Type is one of "file", "redis", "sqlite" or "none" (default: file)
	Type string

	// Dir is the FileStore directory (default: .cache)
	Dir string

	// SQLitePath is the database file used by the sqlite backend (default: .cache/healthflow-cache.db)
	SQLitePath string

	// RedisURL is the connection URL used by the redis backend
	RedisURL string
}

// NewStore creates the configured backend.
// Returns nil, nil when caching is disabled.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", TypeFile:
		return NewFileStore(cfg.Dir), nil
	case TypeNone:
		return nil, nil
	case TypeRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when CACHE_TYPE is redis")
		}
		return NewRedisStore(RedisConfig{URL: cfg.RedisURL})
	case TypeSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = ".cache/healthflow-cache.db"
		}
		st, err := storage.NewSQLite(storage.SQLiteConfig{Path: path})
		if err != nil {
			return nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		store, err := NewSQLiteStore(st.SQLiteDB())
		if err != nil {
			st.Close()
			return nil, err
		}
		store.closer = st
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (valid: file, redis, sqlite, none)", cfg.Type)
	}
}
