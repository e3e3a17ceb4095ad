package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_generator.go -package=mocks policy-manual-ai/internal/llm Generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var _ Generator = (*Client)(nil)

// Client is a client for an Ollama-style /api/generate completion endpoint.
type Client struct {
	BaseURL     string
	Model       string
	Temperature float64
	TopP        float64
	client      *http.Client
}

// NewClient creates a new LLM client. A zero timeout means no client-side limit.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:     baseURL,
		Model:       model,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		client:      &http.Client{Timeout: timeout},
	}
}

// Generate sends prompt as a single non-streaming completion request.
// A non-200 response is returned as *StatusError.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/api/generate", c.BaseURL)

	payload := GenerateRequest{
		Model:       c.Model,
		Prompt:      prompt,
		Stream:      false,
		Temperature: c.Temperature,
		TopP:        c.TopP,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var genResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return genResp.Response, nil
}
