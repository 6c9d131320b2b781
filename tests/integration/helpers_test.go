//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// API endpoints
const (
	healthPath      = "/api/health"
	orchestratePath = "/api/orchestrate"
	nutritionPath   = "/api/nutrition/check"
)

// dailyRequest is a low-recovery day for an ACL patient on warfarin.
var dailyRequest = map[string]any{
	"hrv_ms":         41.8,
	"baseline_hrv":   55,
	"resting_hr":     72,
	"sleep_hours":    6,
	"surgery":        "ACL reconstruction",
	"weeks_post_op":  8,
	"restrictions":   []string{"no pivoting", "no jumping"},
	"medications":    []string{"warfarin"},
	"equipment":      []string{"dumbbells"},
	"time_available": 30,
}

// sendJSONRequest sends a JSON POST request and returns the response.
func sendJSONRequest(t *testing.T, url string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err, "failed to marshal request payload")

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err, "failed to create request")

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "failed to send request")
	return resp
}

// decodeBody reads and decodes a JSON object response.
func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer closeBody(resp)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body), "body: %s", data)
	return body
}

// closeBody is a helper to close response body in defer statements.
func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}
