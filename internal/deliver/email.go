// Package deliver pushes rendered digests out through the e-mail and
// group-chat transports.
package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EmailSender sends through a SparkPost-compatible transmissions API.
type EmailSender struct {
	apiBase         string
	apiKey          string
	from            string
	listUnsubscribe string
	httpClient      *http.Client
}

// EmailConfig configures the sender. APIKey and From are required.
type EmailConfig struct {
	APIBase         string // Default https://api.sparkpost.com/api/v1
	APIKey          string
	From            string
	ListUnsubscribe string        // Optional List-Unsubscribe header value
	Timeout         time.Duration // Default 30s
}

func NewEmailSender(cfg EmailConfig) (*EmailSender, error) {
	if cfg.APIKey == "" || cfg.From == "" {
		return nil, fmt.Errorf("mail API key and from address are required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.sparkpost.com/api/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &EmailSender{
		apiBase:         cfg.APIBase,
		apiKey:          cfg.APIKey,
		from:            cfg.From,
		listUnsubscribe: cfg.ListUnsubscribe,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Send submits one transmission with an HTML body and a plain-text
// alternative, returning the transmission id.
func (es *EmailSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) (string, error) {
	content := map[string]interface{}{
		"from": map[string]string{
			"email": es.from,
		},
		"subject": subject,
		"html":    htmlBody,
		"text":    textBody,
	}
	if es.listUnsubscribe != "" {
		content["headers"] = map[string]string{
			"List-Unsubscribe": es.listUnsubscribe,
		}
	}

	transmission := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{
				"address": map[string]string{
					"email": to,
				},
			},
		},
		"content": content,
		"options": map[string]interface{}{
			"open_tracking":  false,
			"click_tracking": false,
		},
	}

	body, err := json.Marshal(transmission)
	if err != nil {
		return "", fmt.Errorf("failed to encode transmission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, es.apiBase+"/transmissions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", es.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := es.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transmission request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var result struct {
		Results struct {
			TotalAcceptedRecipients int    `json:"total_accepted_recipients"`
			ID                      string `json:"id"`
		} `json:"results"`
		Errors []struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || len(result.Errors) > 0 {
		msg := "unknown error"
		if len(result.Errors) > 0 {
			msg = result.Errors[0].Message
		}
		return "", fmt.Errorf("mail API rejected transmission (status %d): %s", resp.StatusCode, msg)
	}
	if result.Results.TotalAcceptedRecipients == 0 {
		return "", fmt.Errorf("mail API accepted no recipients")
	}

	return result.Results.ID, nil
}
