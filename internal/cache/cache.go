// Package cache provides a content-addressed response cache for generation calls.
// Entries are keyed by the SHA-256 of the canonical JSON form of the request and
// expire DefaultTTL after they were written. File, Redis and SQLite backends are supported.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTTL is how long a cached response stays valid after it was written.
const DefaultTTL = 24 * time.Hour

// Entry is a single persisted cache record.
type Entry struct {
	Key      string          `json:"key,omitempty"`
	StoredAt time.Time       `json:"timestamp"`
	Input    json.RawMessage `json:"input,omitempty"`
	Response json.RawMessage `json:"response"`
}

// Expired reports whether the entry is older than ttl at the given instant.
// An entry exactly ttl old is still live, matching Store.Sweep's cutoff.
func (e *Entry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) > ttl
}

// Store defines the interface for cache backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load retrieves the entry for key.
	// Returns nil, nil if no entry exists.
	Load(ctx context.Context, key string) (*Entry, error)

	// Save writes the entry, replacing any previous entry with the same key.
	Save(ctx context.Context, entry *Entry) error

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Sweep removes entries stored before cutoff and returns how many were removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Key returns the cache key for v: the hex SHA-256 of its canonical JSON encoding.
// Object keys are sorted at every depth and numbers keep their literal form, so two
// values that differ only in field order hash to the same key.
func Key(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Canonicalize encodes v as JSON with sorted object keys and verbatim numbers.
func Canonicalize(v any) ([]byte, error) {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal cache key input: %w", err)
		}
		raw = b
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode cache key input: %w", err)
	}

	// encoding/json writes map keys in sorted order and json.Number verbatim.
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to encode canonical cache key input: %w", err)
	}
	return out, nil
}
