// Package llm is a minimal client for OpenAI-compatible chat-completions
// endpoints. The base URL and path are configurable so any compatible
// gateway can serve it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client calls one chat-completions endpoint.
type Client struct {
	baseURL     string
	path        string
	apiKey      string
	model       string
	temperature float64
	interval    time.Duration
	httpClient  *http.Client

	mu       sync.Mutex
	lastCall time.Time
}

// Options configures a Client. BaseURL, Model and APIKey are required.
type Options struct {
	BaseURL     string
	Path        string // Defaults to /v1/chat/completions
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration // Per-call timeout, default 60s
	Interval    time.Duration // Minimum gap between successive calls
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" || opts.Model == "" || opts.APIKey == "" {
		return nil, fmt.Errorf("llm: base URL, model and API key are required")
	}
	if opts.Path == "" {
		opts.Path = "/v1/chat/completions"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		path:        opts.Path,
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		interval:    opts.Interval,
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one system+user turn and returns the assistant text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	c.throttle()

	payload := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat endpoint returned status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat endpoint error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat endpoint returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// throttle enforces the configured minimum gap between calls.
func (c *Client) throttle() {
	if c.interval <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastCall.IsZero() {
		if wait := c.interval - time.Since(c.lastCall); wait > 0 {
			time.Sleep(wait)
		}
	}
	c.lastCall = time.Now()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
