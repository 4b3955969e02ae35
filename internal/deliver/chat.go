package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChatSender sends digest cards through the tenant-token group-chat API.
type ChatSender struct {
	apiBase    string
	appID      string
	appSecret  string
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// ChatConfig configures the sender. All three fields are required.
type ChatConfig struct {
	APIBase   string
	AppID     string
	AppSecret string
	Timeout   time.Duration // Default 15s
}

func NewChatSender(cfg ChatConfig) (*ChatSender, error) {
	if cfg.APIBase == "" || cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("chat API base, app id and app secret are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &ChatSender{
		apiBase:    cfg.APIBase,
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// tenantToken fetches (or reuses) the tenant access token.
func (cs *ChatSender) tenantToken(ctx context.Context) (string, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.token != "" && time.Now().Before(cs.tokenExpiry) {
		return cs.token, nil
	}

	payload, _ := json.Marshal(map[string]string{
		"app_id":     cs.appID,
		"app_secret": cs.appSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cs.apiBase+"/auth/v3/tenant_access_token/internal", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cs.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.Code != 0 || result.TenantAccessToken == "" {
		return "", fmt.Errorf("token endpoint returned code %d: %s", result.Code, result.Msg)
	}

	cs.token = result.TenantAccessToken
	// Refresh a minute early.
	cs.tokenExpiry = time.Now().Add(time.Duration(result.Expire-60) * time.Second)
	return cs.token, nil
}

// ListChats returns the ids of every chat the app can see (first page; the
// broadcast use case has far fewer chats than one page holds).
func (cs *ChatSender) ListChats(ctx context.Context) ([]string, error) {
	token, err := cs.tenantToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cs.apiBase+"/im/v1/chats?page_size=100", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build chat list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := cs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat list request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Items []struct {
				ChatID string `json:"chat_id"`
			} `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode chat list: %w", err)
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("chat list returned code %d: %s", result.Code, result.Msg)
	}

	ids := make([]string, 0, len(result.Data.Items))
	for _, item := range result.Data.Items {
		ids = append(ids, item.ChatID)
	}
	return ids, nil
}

// SendMarkdown delivers a markdown body to one chat, as an interactive card
// when asCard is set, otherwise as a plain text message.
func (cs *ChatSender) SendMarkdown(ctx context.Context, chatID, title, markdown string, asCard bool) error {
	token, err := cs.tenantToken(ctx)
	if err != nil {
		return err
	}

	var msgType, content string
	if asCard {
		card := map[string]interface{}{
			"config": map[string]bool{"wide_screen_mode": true},
			"header": map[string]interface{}{
				"title": map[string]string{"tag": "plain_text", "content": title},
			},
			"elements": []map[string]string{
				{"tag": "markdown", "content": markdown},
			},
		}
		raw, _ := json.Marshal(card)
		msgType, content = "interactive", string(raw)
	} else {
		raw, _ := json.Marshal(map[string]string{"text": title + "\n" + markdown})
		msgType, content = "text", string(raw)
	}

	// The uuid field makes retried sends idempotent on the API side.
	payload, _ := json.Marshal(map[string]string{
		"receive_id": chatID,
		"msg_type":   msgType,
		"content":    content,
		"uuid":       uuid.NewString(),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cs.apiBase+"/im/v1/messages?receive_id_type=chat_id", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build message request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := cs.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("message request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to decode message response (status %d): %w", resp.StatusCode, err)
	}
	if result.Code != 0 {
		return fmt.Errorf("message endpoint returned code %d: %s", result.Code, result.Msg)
	}
	return nil
}

// Broadcast sends the markdown body to every visible chat. Per-chat failures
// are collected, not fatal.
func (cs *ChatSender) Broadcast(ctx context.Context, title, markdown string, asCard bool) (sent int, errs []error) {
	ids, err := cs.ListChats(ctx)
	if err != nil {
		return 0, []error{err}
	}
	for _, id := range ids {
		if err := cs.SendMarkdown(ctx, id, title, markdown, asCard); err != nil {
			errs = append(errs, fmt.Errorf("chat %s: %w", id, err))
			continue
		}
		sent++
	}
	return sent, errs
}
