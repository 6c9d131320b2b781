package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("json", "info", &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("cache hit", "key", "3fa2c1d0")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cache hit", line["msg"])
	assert.Equal(t, "3fa2c1d0", line["key"])
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("pretty", "debug", &buf)
	require.NoError(t, err)

	logger.Debug("retrying", "attempt", 2)
	assert.Contains(t, buf.String(), "retrying")
	assert.Contains(t, buf.String(), "attempt")
}

func TestNew_Errors(t *testing.T) {
	_, err := New("xml", "info", &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New("json", "loud", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
