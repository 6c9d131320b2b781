package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultDir is the directory used by FileStore when none is configured.
const DefaultDir = ".cache"

// FileStore implements Store with one JSON file per entry.
// This is suitable for single-instance deployments.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
// The directory is created lazily on first write.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileStore{dir: dir}
}

// Dir returns the directory holding the entry files.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load reads the entry file for key.
func (s *FileStore) Load(_ context.Context, key string) (*Entry, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse cache file %s: %w", key, err)
	}
	if entry.Key == "" {
		entry.Key = key
	}
	return &entry, nil
}

// Save writes the entry atomically using a temp file + rename.
func (s *FileStore) Save(_ context.Context, entry *Entry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	// Unique temp name so concurrent writers of the same key never share a file.
	tmp, err := os.CreateTemp(s.dir, entry.Key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(entry.Key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Delete removes the entry file for key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// Sweep removes every entry file stored before cutoff.
// Unreadable files are skipped and logged.
func (s *FileStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list cache directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		entry, err := s.Load(ctx, key)
		if err != nil {
			slog.Warn("skipping unreadable cache file", "file", name, "error", err)
			continue
		}
		if entry == nil || !entry.StoredAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
