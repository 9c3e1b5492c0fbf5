// Package webhook dispatches chat messages to agent endpoints. Agents are
// opaque HTTP services; the only contract is the payload shape and a
// 2xx-with-JSON response.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Payload is the exact body every agent expects: five flat fields, nothing
// nested, nothing renamed.
type Payload struct {
	ChatInput string `json:"chatInput"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Lang      string `json:"lang"`
}

// StatusError reports a non-2xx response from an agent endpoint
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent returned status %d", e.StatusCode)
}

// Client posts payloads to agent webhook URLs
type Client struct {
	httpClient *http.Client
}

// NewClient creates a webhook client with the given per-request timeout
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts one payload and returns the raw response body. Transport
// failures and non-2xx statuses are both errors; callers treat them as
// retryable.
func (c *Client) Send(ctx context.Context, webhookURL string, payload Payload) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}
