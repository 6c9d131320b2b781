// Package core provides core types and interfaces for the HealthFlow service.
package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the type of an HTTP-facing error
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeNotFound indicates a not found error (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
	// ErrorTypeInternal indicates an unexpected server-side failure (500)
	ErrorTypeInternal ErrorType = "internal_error"
)

// GatewayError is the error type returned to HTTP clients.
// Agent failures never become GatewayErrors; they are reported inside the result body.
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *GatewayError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Type,
			"message": e.Message,
		},
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// ErrorKind classifies a failed generation call.
type ErrorKind string

const (
	// ErrorKindUnconfigured means no credential is configured; no network attempt was made.
	ErrorKindUnconfigured ErrorKind = "unconfigured"
	// ErrorKindRateLimited covers quota exhaustion and HTTP 429. It is the only retried kind.
	ErrorKindRateLimited ErrorKind = "rate_limited"
	// ErrorKindInvalidCredential means the upstream rejected the API key.
	ErrorKindInvalidCredential ErrorKind = "invalid_credential"
	// ErrorKindMalformedResponse means structured output did not parse as JSON.
	ErrorKindMalformedResponse ErrorKind = "malformed_response"
	// ErrorKindUnknown is any other network or SDK failure.
	ErrorKindUnknown ErrorKind = "unknown"
)

// GenerationError is the failure half of a GenerationResult.
type GenerationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError creates a GenerationError of the given kind.
func NewGenerationError(kind ErrorKind, message string, err error) *GenerationError {
	return &GenerationError{Kind: kind, Message: message, Err: err}
}

// UpstreamError carries the HTTP status reported by the generation API.
// Generators wrap SDK errors in it so classification does not depend on the SDK.
type UpstreamError struct {
	StatusCode int
	Status     string
	Message    string
	Err        error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("upstream error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("upstream error %d: %s", e.StatusCode, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

var rateLimitMarkers = []string{
	"quota",
	"rate limit",
	"rate-limit",
	"ratelimit",
	"too many requests",
	"resource_exhausted",
	"429",
}

var invalidCredentialMarkers = []string{
	"api key not valid",
	"api_key_invalid",
	"invalid api key",
	"invalid_api_key",
	"permission_denied",
	"unauthenticated",
	"invalid credential",
}

// ClassifyError maps an upstream failure onto an ErrorKind.
// A status code, when present, wins over text markers.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}

	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		switch upstream.StatusCode {
		case http.StatusTooManyRequests:
			return ErrorKindRateLimited
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrorKindInvalidCredential
		}
	}

	text := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(text, marker) {
			return ErrorKindRateLimited
		}
	}
	for _, marker := range invalidCredentialMarkers {
		if strings.Contains(text, marker) {
			return ErrorKindInvalidCredential
		}
	}
	return ErrorKindUnknown
}
