package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComplete(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"choices":[{"message":{"content":"hello back"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Options{
		BaseURL: server.URL, APIKey: "test-key", Model: "test-model", Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	out, err := client.Complete(context.Background(), "be terse", "say hello")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != "hello back" {
		t.Errorf("unexpected content %q", out)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotReq["model"] != "test-model" {
		t.Errorf("unexpected model %v", gotReq["model"])
	}
	msgs := gotReq["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(msgs))
	}
}

func TestComplete_CustomPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client, _ := NewClient(Options{
		BaseURL: server.URL + "/", Path: "/api/v3/chat", APIKey: "k", Model: "m",
	})
	if _, err := client.Complete(context.Background(), "s", "u"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if gotPath != "/api/v3/chat" {
		t.Errorf("unexpected path %q", gotPath)
	}
}

func TestComplete_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := NewClient(Options{BaseURL: server.URL, APIKey: "k", Model: "m"})
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestNewClient_RequiresEndpointSettings(t *testing.T) {
	if _, err := NewClient(Options{BaseURL: "http://x"}); err == nil {
		t.Error("expected error for missing model and key")
	}
}
