package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGatewayError_Error(t *testing.T) {
	err := &GatewayError{Type: ErrorTypeInvalidRequest, Message: "bad request"}
	if got := err.Error(); got != "invalid_request_error: bad request" {
		t.Errorf("Error() = %v", got)
	}
}

func TestGatewayError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	gatewayErr := NewInvalidRequestError("wrapped error", originalErr)

	if unwrapped := gatewayErr.Unwrap(); unwrapped != originalErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, originalErr)
	}
}

func TestGatewayError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *GatewayError
		expected int
	}{
		{
			name:     "explicit status code",
			err:      &GatewayError{Type: ErrorTypeInternal, StatusCode: http.StatusServiceUnavailable},
			expected: http.StatusServiceUnavailable,
		},
		{
			name:     "invalid request default",
			err:      &GatewayError{Type: ErrorTypeInvalidRequest},
			expected: http.StatusBadRequest,
		},
		{
			name:     "authentication default",
			err:      &GatewayError{Type: ErrorTypeAuthentication},
			expected: http.StatusUnauthorized,
		},
		{
			name:     "not found default",
			err:      &GatewayError{Type: ErrorTypeNotFound},
			expected: http.StatusNotFound,
		},
		{
			name:     "internal default",
			err:      &GatewayError{Type: ErrorTypeInternal},
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGatewayError_ToJSON(t *testing.T) {
	body := NewAuthenticationError("missing key").ToJSON()
	inner, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected nested error object, got %T", body["error"])
	}
	if inner["type"] != ErrorTypeAuthentication {
		t.Errorf("type = %v", inner["type"])
	}
	if inner["message"] != "missing key" {
		t.Errorf("message = %v", inner["message"])
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"nil", nil, ErrorKindUnknown},
		{"status 429", &UpstreamError{StatusCode: 429, Message: "slow down"}, ErrorKindRateLimited},
		{"status 401", &UpstreamError{StatusCode: 401, Message: "nope"}, ErrorKindInvalidCredential},
		{"status 403", &UpstreamError{StatusCode: 403, Message: "nope"}, ErrorKindInvalidCredential},
		{"resource exhausted status", &UpstreamError{StatusCode: 400, Status: "RESOURCE_EXHAUSTED"}, ErrorKindRateLimited},
		{"quota text", errors.New("Quota exceeded for metric"), ErrorKindRateLimited},
		{"rate limit text", errors.New("rate limit reached"), ErrorKindRateLimited},
		{"too many requests text", errors.New("Too Many Requests"), ErrorKindRateLimited},
		{"wrapped 429 text", fmt.Errorf("call failed: %w", errors.New("HTTP 429")), ErrorKindRateLimited},
		{"api key text", errors.New("API key not valid. Please pass a valid API key."), ErrorKindInvalidCredential},
		{"permission denied text", errors.New("PERMISSION_DENIED"), ErrorKindInvalidCredential},
		{"network", errors.New("connection refused"), ErrorKindUnknown},
		{"generation error keeps kind", NewGenerationError(ErrorKindMalformedResponse, "bad json", nil), ErrorKindMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.expected {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGenerationResult_OK(t *testing.T) {
	ok := GenerationResult{Text: "fine"}
	if !ok.OK() || ok.ErrorMessage() != "" {
		t.Errorf("expected success, got %+v", ok)
	}

	failed := Failed(ErrorKindUnconfigured, "API key not configured", nil)
	if failed.OK() {
		t.Fatal("expected failure")
	}
	if failed.ErrorMessage() != "API key not configured" {
		t.Errorf("ErrorMessage() = %q", failed.ErrorMessage())
	}
	if failed.Err.Kind != ErrorKindUnconfigured {
		t.Errorf("Kind = %v", failed.Err.Kind)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(t.Context(), "req-123")
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("RequestID() = %q", got)
	}
	if got := RequestID(t.Context()); got != "" {
		t.Errorf("RequestID() on empty context = %q", got)
	}
}
