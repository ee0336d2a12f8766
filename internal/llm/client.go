// Package llm provides the language-model client the browser driver uses to
// interpret natural-language observe and extract instructions against
// rendered page content.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model is configured. Instruction
// interpretation is a classification/extraction workload, so the fast tier
// is the default.
const DefaultModel = "gemini-1.5-flash"

// Client is an abstraction over LLM providers.
type Client interface {
	// GenerateContent generates free-text content for the prompt.
	GenerateContent(ctx context.Context, prompt string) (string, error)
	// GenerateJSON generates content expected to be a raw JSON document.
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	// Close releases any resources held by the client.
	Close() error
}

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// GenerateContent generates free-text content for the prompt.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	return collectText(resp)
}

// GenerateJSON generates content constrained to JSON output and strips any
// markdown fences the model wraps around it.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	text, err := collectText(resp)
	if err != nil {
		return "", err
	}
	return CleanJSON(text), nil
}

// Close releases the underlying client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// collectText flattens the first candidate's text parts.
func collectText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from model")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no text parts in model response")
	}
	return sb.String(), nil
}

// CleanJSON strips markdown code fences that models sometimes wrap around
// JSON output.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
