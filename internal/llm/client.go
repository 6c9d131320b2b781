// Package llm provides the generation client used by the agents:
// credential gating, response caching, error classification,
// exponential backoff on rate limits and a structured JSON mode.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"healthflow/internal/cache"
	"healthflow/internal/core"
)

// Completion is the raw output of one generation call.
type Completion struct {
	Text string
	// Raw is the SDK response, kept for callers that need more than the text.
	Raw any
}

// Generator performs a single text generation call against the upstream API.
type Generator interface {
	GenerateContent(ctx context.Context, model, prompt, system string) (Completion, error)
}

// Attempt outcomes reported to an AttemptObserver.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
	OutcomeMalformed   = "malformed"
)

// AttemptObserver is notified after every network attempt.
type AttemptObserver interface {
	GenerationAttempt(outcome string)
}

// Config holds retry and timeout settings for the client.
type Config struct {
	// DefaultModel is used when a request leaves Model empty
	DefaultModel string

	MaxAttempts    int           // Total attempts including the first (default: 3)
	InitialBackoff time.Duration // Delay before the second attempt (default: 1s)
	MaxBackoff     time.Duration // Upper bound for any single delay (default: 30s)
	BackoffFactor  float64       // Backoff multiplier (default: 2.0)

	// AttemptTimeout bounds each individual network attempt (default: 60s)
	AttemptTimeout time.Duration
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		DefaultModel:   "gemini-2.0-flash-lite",
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		AttemptTimeout: 60 * time.Second,
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Client.
type Option func(*Client)

// WithObserver reports attempt outcomes to o.
func WithObserver(o AttemptObserver) Option {
	return func(c *Client) { c.observer = o }
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) { c.sleep = sleep }
}

// Client wraps a Generator with caching and rate-limit retries.
// It never returns Go errors: every outcome is a core.GenerationResult.
type Client struct {
	generator Generator
	cache     *cache.ResponseCache
	config    Config
	observer  AttemptObserver
	sleep     SleepFunc
}

// New creates a client. generator may be nil, in which case every call
// fails with core.ErrorKindUnconfigured. responses may be nil to disable caching.
func New(generator Generator, responses *cache.ResponseCache, config Config, opts ...Option) *Client {
	defaults := DefaultConfig()
	if config.MaxAttempts < 1 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = defaults.BackoffFactor
	}
	if config.DefaultModel == "" {
		config.DefaultModel = defaults.DefaultModel
	}

	c := &Client{
		generator: generator,
		cache:     responses,
		config:    config,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a generator (and therefore a credential) is present.
func (c *Client) Configured() bool {
	return c != nil && c.generator != nil
}

// Generate produces free text in the REASONING / DECISION / EXPLANATION format.
func (c *Client) Generate(ctx context.Context, req core.GenerationRequest) core.GenerationResult {
	if req.Kind == "" {
		req.Kind = core.KindThinking
	}
	return c.generate(ctx, req)
}

// GenerateStructured asks for a JSON document. The reply is stripped of
// Markdown fences and must parse; otherwise the result is MalformedResponse
// and nothing is cached.
func (c *Client) GenerateStructured(ctx context.Context, req core.GenerationRequest) core.GenerationResult {
	req.Kind = core.KindJSON
	return c.generate(ctx, req)
}

// cachedResponse is what gets persisted for a successful call.
type cachedResponse struct {
	Text string          `json:"text"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (c *Client) generate(ctx context.Context, req core.GenerationRequest) core.GenerationResult {
	if !c.Configured() {
		return core.Failed(core.ErrorKindUnconfigured,
			"Gemini API key not configured. Set GEMINI_API_KEY to enable AI analysis.", nil)
	}
	if req.Model == "" {
		req.Model = c.config.DefaultModel
	}

	if raw, ok := c.cache.Get(ctx, req); ok {
		var cached cachedResponse
		if err := json.Unmarshal(raw, &cached); err != nil {
			slog.Warn("ignoring unreadable cached response", "error", err)
		} else {
			return core.GenerationResult{Text: cached.Text, Data: cached.Data, Cached: true}
		}
	}

	prompt := BuildPrompt(req)
	system := ""
	if req.Kind == core.KindJSON {
		system = req.SystemInstruction
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.calculateBackoff(attempt)
			slog.Warn("rate limited by generation API, backing off",
				"attempt", attempt, "max_attempts", c.config.MaxAttempts, "backoff", backoff)
			if err := c.sleep(ctx, backoff); err != nil {
				return core.Failed(core.ErrorKindUnknown, "request cancelled: "+err.Error(), err)
			}
		}

		completion, err := c.attempt(ctx, req.Model, prompt, system)
		if err == nil {
			result, ok := c.finish(req, completion)
			if !ok {
				c.observe(OutcomeMalformed)
				result.Attempts = attempt
				return result
			}
			c.observe(OutcomeSuccess)
			c.cache.Set(ctx, req, cachedResponse{Text: result.Text, Data: result.Data})
			result.Attempts = attempt
			return result
		}

		lastErr = err
		kind := core.ClassifyError(err)
		if kind != core.ErrorKindRateLimited {
			c.observe(OutcomeFailed)
			result := core.Failed(kind, failureMessage(kind, err, attempt), err)
			result.Attempts = attempt
			return result
		}
		c.observe(OutcomeRateLimited)
	}

	result := core.Failed(core.ErrorKindRateLimited,
		failureMessage(core.ErrorKindRateLimited, lastErr, c.config.MaxAttempts), lastErr)
	result.Attempts = c.config.MaxAttempts
	return result
}

func (c *Client) attempt(ctx context.Context, model, prompt, system string) (Completion, error) {
	if c.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.AttemptTimeout)
		defer cancel()
	}
	return c.generator.GenerateContent(ctx, model, prompt, system)
}

// finish turns a completion into a success result. For structured requests
// it returns false with a MalformedResponse failure when the text is not JSON.
func (c *Client) finish(req core.GenerationRequest, completion Completion) (core.GenerationResult, bool) {
	if req.Kind != core.KindJSON {
		return core.GenerationResult{Text: completion.Text, Raw: completion.Raw}, true
	}

	text := StripCodeFences(completion.Text)
	if !gjson.Valid(text) {
		return core.Failed(core.ErrorKindMalformedResponse,
			"Model returned invalid JSON", fmt.Errorf("unparseable structured response: %.80q", text)), false
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(text)); err != nil {
		return core.Failed(core.ErrorKindMalformedResponse, "Model returned invalid JSON", err), false
	}
	return core.GenerationResult{Text: text, Data: compact.Bytes(), Raw: completion.Raw}, true
}

// calculateBackoff returns the delay before the given attempt (attempt >= 2):
// InitialBackoff * BackoffFactor^(attempt-2), capped at MaxBackoff.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.config.InitialBackoff) * math.Pow(c.config.BackoffFactor, float64(attempt-2))
	if backoff > float64(c.config.MaxBackoff) {
		backoff = float64(c.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

func (c *Client) observe(outcome string) {
	if c.observer != nil {
		c.observer.GenerationAttempt(outcome)
	}
}

func failureMessage(kind core.ErrorKind, err error, attempts int) string {
	switch kind {
	case core.ErrorKindRateLimited:
		return fmt.Sprintf("Rate limit exceeded after %d attempts. Please wait a minute and try again.", attempts)
	case core.ErrorKindInvalidCredential:
		return "Invalid Gemini API key. Check GEMINI_API_KEY in your .env file."
	default:
		if err == nil {
			return "unknown generation error"
		}
		return err.Error()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
