package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthflow/internal/version"
)

func TestNewHTTPClient_SetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := NewHTTPClient(nil)
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, version.UserAgent(), got)
}

func TestNewHTTPClient_KeepsExplicitUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom/1.0")

	resp, err := NewHTTPClient(nil).Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "custom/1.0", got)
}

func TestGeminiConfig(t *testing.T) {
	cfg := GeminiConfig(60 * time.Second)
	assert.Equal(t, 65*time.Second, cfg.Timeout)
	assert.Equal(t, 60*time.Second, cfg.ResponseHeaderTimeout)

	assert.Equal(t, DefaultConfig().Timeout, GeminiConfig(0).Timeout)
}

func TestCollectorConfig(t *testing.T) {
	cfg := CollectorConfig()
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Less(t, cfg.Timeout, DefaultConfig().Timeout)
}
