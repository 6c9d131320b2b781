package core

import "encoding/json"

// GenerationKind selects how a prompt is shaped and how the reply is interpreted.
type GenerationKind string

const (
	// KindThinking asks for a REASONING / DECISION / EXPLANATION narrative.
	KindThinking GenerationKind = "thinking"
	// KindJSON asks for a bare JSON document.
	KindJSON GenerationKind = "json"
)

// GenerationRequest is a single call to the text generation API.
// It doubles as the cache key input, so it must stay a plain value.
type GenerationRequest struct {
	Model             string         `json:"model"`
	Prompt            string         `json:"prompt"`
	SystemInstruction string         `json:"system_instruction,omitempty"`
	Kind              GenerationKind `json:"kind"`
}

// GenerationResult is either a success (Err == nil) or a failure.
type GenerationResult struct {
	// Text is the generated text. In structured mode it is the fence-stripped JSON text.
	Text string
	// Data holds the compacted JSON document in structured mode.
	Data json.RawMessage
	// Raw is the SDK response handle. Nil for cached results.
	Raw any
	// Cached reports whether the result came from the response cache.
	Cached bool
	// Attempts is the number of network attempts made (0 for cache hits).
	Attempts int
	Err      *GenerationError
}

// OK reports whether the call succeeded.
func (r GenerationResult) OK() bool {
	return r.Err == nil
}

// ErrorMessage returns the human-readable failure message, or "" on success.
func (r GenerationResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Message
}

// Failed builds a failure result.
func Failed(kind ErrorKind, message string, err error) GenerationResult {
	return GenerationResult{Err: NewGenerationError(kind, message, err)}
}
