package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"healthflow/internal/core"
)

// Sampling parameters applied to every Gemini request.
const (
	geminiTemperature     = 0.7
	geminiTopP            = 0.95
	geminiTopK            = 40
	geminiMaxOutputTokens = 2048
)

// GeminiGenerator implements Generator on the Google GenAI SDK.
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator creates a generator for the Gemini API.
// httpClient may be nil to use the SDK default.
func NewGeminiGenerator(ctx context.Context, apiKey string, httpClient *http.Client) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiGenerator{client: client}, nil
}

// GenerateContent sends a single prompt and returns the response text.
func (g *GeminiGenerator) GenerateContent(ctx context.Context, model, prompt, system string) (Completion, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](geminiTemperature),
		TopP:            genai.Ptr[float32](geminiTopP),
		TopK:            genai.Ptr[float32](geminiTopK),
		MaxOutputTokens: geminiMaxOutputTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return Completion{}, wrapGenAIError(err)
	}
	return Completion{Text: resp.Text(), Raw: resp}, nil
}

// wrapGenAIError converts SDK API errors into core.UpstreamError so the
// status code survives classification.
func wrapGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &core.UpstreamError{
			StatusCode: apiErr.Code,
			Status:     apiErr.Status,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return err
}
