package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ModelInvoker is the single I/O primitive the pipeline depends on: send a
// prompt to a named model, get text back or fail. Tests substitute a fake.
type ModelInvoker interface {
	Invoke(ctx context.Context, model string, prompt string, timeout time.Duration) (string, error)
}

// OpenRouterClient invokes models through the OpenRouter chat-completions
// endpoint.
type OpenRouterClient struct {
	apiKey string
	apiURL string
	client *http.Client
}

// NewOpenRouterClient builds a client for the given endpoint. The per-call
// timeout is carried on the request context, not the http.Client, so each
// invocation can use its own.
func NewOpenRouterClient(apiKey, apiURL string) *OpenRouterClient {
	return &OpenRouterClient{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{},
	}
}

// Invoke sends a single user prompt to the model and returns the assistant
// text. The timeout bounds this call only.
func (c *OpenRouterClient) Invoke(ctx context.Context, model string, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := OpenRouterRequest{
		Model: model,
		Messages: []OpenRouterMessage{
			{Role: "user", Content: prompt},
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResponse OpenRouterAPIResponse
	if err := json.Unmarshal(bodyBytes, &apiResponse); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(apiResponse.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return apiResponse.Choices[0].Message.Content, nil
}
