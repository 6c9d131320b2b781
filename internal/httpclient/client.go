// Package httpclient builds the tuned *http.Client used for outbound calls
// to the Gemini API and the trace collector.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"healthflow/internal/version"
)

// ClientConfig holds configuration options for creating HTTP clients
type ClientConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// Timeout bounds the whole request including reading the body. Zero means none.
	Timeout time.Duration

	DialTimeout           time.Duration
	KeepAlive             time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
}

// DefaultConfig returns connection pool settings suitable for a handful of API hosts.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		Timeout:               2 * time.Minute,
		DialTimeout:           10 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 90 * time.Second,
	}
}

// GeminiConfig sizes the client for generation calls. Each attempt is already
// bounded by a context deadline, so the client timeout only needs to sit above it.
func GeminiConfig(attemptTimeout time.Duration) ClientConfig {
	cfg := DefaultConfig()
	if attemptTimeout > 0 {
		cfg.Timeout = attemptTimeout + 5*time.Second
		cfg.ResponseHeaderTimeout = attemptTimeout
	}
	return cfg
}

// CollectorConfig sizes the client for trace batch uploads.
func CollectorConfig() ClientConfig {
	cfg := DefaultConfig()
	cfg.Timeout = 15 * time.Second
	cfg.ResponseHeaderTimeout = 10 * time.Second
	cfg.MaxIdleConnsPerHost = 2
	return cfg
}

// NewHTTPClient creates a new HTTP client with the provided configuration.
// If config is nil, DefaultConfig() is used.
func NewHTTPClient(config *ClientConfig) *http.Client {
	if config == nil {
		cfg := DefaultConfig()
		config = &cfg
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: &userAgentTransport{next: transport, agent: version.UserAgent()},
		Timeout:   config.Timeout,
	}
}

// userAgentTransport sets User-Agent on requests that do not carry one.
type userAgentTransport struct {
	next  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.agent)
	return t.next.RoundTrip(clone)
}
