package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthflow/config"
	"healthflow/internal/cache"
	"healthflow/internal/core"
)

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "dev")
}

func TestHRVCmd(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"hrv", "--days", "3", "--seed", "42"})

	require.NoError(t, root.Execute())

	var readings []core.HRVReading
	require.NoError(t, json.Unmarshal(out.Bytes(), &readings))
	require.Len(t, readings, 3)
	assert.Equal(t, 41.8, readings[2].HRVms)
}

func TestSweepCache(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewFileStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &cache.Entry{
		Key:      "stale",
		StoredAt: time.Now().Add(-48 * time.Hour),
		Response: json.RawMessage(`{"text":"old"}`),
	}))
	require.NoError(t, store.Save(ctx, &cache.Entry{
		Key:      "fresh",
		StoredAt: time.Now(),
		Response: json.RawMessage(`{"text":"new"}`),
	}))

	var out bytes.Buffer
	cfg := &config.Config{Cache: config.CacheConfig{Type: "file", Dir: dir}}
	require.NoError(t, sweepCache(ctx, &out, cfg))

	assert.Equal(t, "Removed 1 expired entries.\n", out.String())
	_, err := os.Stat(filepath.Join(dir, "fresh.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "stale.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestSweepCache_Disabled(t *testing.T) {
	var out bytes.Buffer
	cfg := &config.Config{Cache: config.CacheConfig{Type: "none"}}

	require.NoError(t, sweepCache(context.Background(), &out, cfg))
	assert.Equal(t, "Response cache is disabled.\n", out.String())
}
