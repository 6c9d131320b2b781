package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Lookup results reported to a LookupObserver.
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupExpired = "expired"
	LookupError   = "error"
)

// LookupObserver is notified of every cache lookup.
type LookupObserver interface {
	CacheLookup(result string)
}

// ResponseCache maps generation requests to stored responses.
// Backend failures are logged and treated as misses; they never reach the caller.
// A nil *ResponseCache or one without a store behaves as an always-empty cache.
type ResponseCache struct {
	store    Store
	ttl      time.Duration
	now      func() time.Time
	observer LookupObserver
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResponseCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithObserver reports lookups to o.
func WithObserver(o LookupObserver) Option {
	return func(c *ResponseCache) { c.observer = o }
}

// NewResponseCache wraps a Store. store may be nil to disable caching.
func NewResponseCache(store Store, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether a backend is configured.
func (c *ResponseCache) Enabled() bool {
	return c != nil && c.store != nil
}

// Get returns the cached response for req, if present and fresh.
// Expired entries are deleted on access.
func (c *ResponseCache) Get(ctx context.Context, req any) (json.RawMessage, bool) {
	if !c.Enabled() {
		return nil, false
	}

	key, err := Key(req)
	if err != nil {
		slog.Warn("cache key computation failed", "error", err)
		c.observe(LookupError)
		return nil, false
	}

	entry, err := c.store.Load(ctx, key)
	if err != nil {
		slog.Warn("cache read failed", "key", shortKey(key), "error", err)
		c.observe(LookupError)
		return nil, false
	}
	if entry == nil {
		c.observe(LookupMiss)
		return nil, false
	}

	if entry.Expired(c.now(), c.ttl) {
		if err := c.store.Delete(ctx, key); err != nil {
			slog.Warn("failed to delete expired cache entry", "key", shortKey(key), "error", err)
		}
		c.observe(LookupExpired)
		return nil, false
	}

	c.observe(LookupHit)
	return entry.Response, true
}

// Set stores resp under the key derived from req. Last write wins.
func (c *ResponseCache) Set(ctx context.Context, req any, resp any) {
	if !c.Enabled() {
		return
	}

	key, err := Key(req)
	if err != nil {
		slog.Warn("cache key computation failed", "error", err)
		return
	}

	input, err := Canonicalize(req)
	if err != nil {
		slog.Warn("cache input encoding failed", "error", err)
		return
	}

	var response json.RawMessage
	switch r := resp.(type) {
	case json.RawMessage:
		response = r
	default:
		b, err := json.Marshal(resp)
		if err != nil {
			slog.Warn("cache response encoding failed", "error", err)
			return
		}
		response = b
	}

	entry := &Entry{
		Key:      key,
		StoredAt: c.now().UTC(),
		Input:    input,
		Response: response,
	}
	if err := c.store.Save(ctx, entry); err != nil {
		slog.Warn("cache write failed", "key", shortKey(key), "error", err)
	}
}

// EvictExpired removes all expired entries and returns how many were removed.
func (c *ResponseCache) EvictExpired(ctx context.Context) int {
	if !c.Enabled() {
		return 0
	}
	n, err := c.store.Sweep(ctx, c.now().Add(-c.ttl))
	if err != nil {
		slog.Warn("cache sweep failed", "removed", n, "error", err)
	}
	return n
}

// Close releases the backend.
func (c *ResponseCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.store.Close()
}

func (c *ResponseCache) observe(result string) {
	if c.observer != nil {
		c.observer.CacheLookup(result)
	}
}

func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
