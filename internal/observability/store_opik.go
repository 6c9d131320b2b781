package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const opikBatchPath = "/v1/private/traces/batch"

// OpikConfig addresses an Opik deployment (Comet cloud or self-hosted).
type OpikConfig struct {
	// URL is the API base, e.g. https://www.comet.com/opik/api or http://localhost:5173/api.
	URL         string
	APIKey      string
	Workspace   string
	ProjectName string
}

// OpikStore implements TraceStore by posting batches to the Opik REST API.
type OpikStore struct {
	cfg    OpikConfig
	client *http.Client
}

// NewOpikStore returns a store posting to cfg.URL with client.
func NewOpikStore(cfg OpikConfig, client *http.Client) (*OpikStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("opik URL is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &OpikStore{cfg: cfg, client: client}, nil
}

type opikBatch struct {
	Traces []*Trace `json:"traces"`
}

// WriteBatch posts all traces in one request. Traces without a project get the configured one.
func (s *OpikStore) WriteBatch(ctx context.Context, traces []*Trace) error {
	if len(traces) == 0 {
		return nil
	}
	for _, t := range traces {
		if t.ProjectName == "" {
			t.ProjectName = s.cfg.ProjectName
		}
	}

	body, err := json.Marshal(opikBatch{Traces: traces})
	if err != nil {
		return fmt.Errorf("failed to encode trace batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL+opikBatchPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build opik request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("authorization", s.cfg.APIKey)
	}
	if s.cfg.Workspace != "" {
		req.Header.Set("Comet-Workspace", s.cfg.Workspace)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("opik request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return fmt.Errorf("opik rejected %d traces: status %d: %s", len(traces), resp.StatusCode, opikErrorMessage(respBody))
}

// opikErrorMessage pulls a readable message out of an Opik error body,
// which is either {"message": "..."} or {"errors": ["..."]}.
func opikErrorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "message"); msg.Exists() {
			return msg.String()
		}
		if errs := gjson.GetBytes(body, "errors"); errs.IsArray() {
			parts := make([]string, 0, len(errs.Array()))
			for _, e := range errs.Array() {
				parts = append(parts, e.String())
			}
			return strings.Join(parts, "; ")
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return "empty response"
}

// Flush is a no-op; each batch is sent synchronously.
func (s *OpikStore) Flush(_ context.Context) error { return nil }

// Close releases idle connections.
func (s *OpikStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
