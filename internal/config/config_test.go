package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.AI.Path != "/v1/chat/completions" {
		t.Errorf("unexpected default AI path: %s", cfg.AI.Path)
	}
	if cfg.AI.MaxRetries != 3 {
		t.Errorf("unexpected default max retries: %d", cfg.AI.MaxRetries)
	}
	if cfg.Runner.TZ != "Asia/Shanghai" {
		t.Errorf("unexpected default timezone: %s", cfg.Runner.TZ)
	}
	if cfg.Runner.CollectWindow != "2h" {
		t.Errorf("unexpected default collect window: %s", cfg.Runner.CollectWindow)
	}
	if cfg.Runner.BackfillLimit != 5 {
		t.Errorf("unexpected default backfill limit: %d", cfg.Runner.BackfillLimit)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("AI_API_BASE_URL", "https://llm.example.com")
	t.Setenv("AI_API_MODEL", "test-model")
	t.Setenv("PIPELINE_TZ", "UTC")
	t.Setenv("MAIL_PLAIN_ONLY", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.AI.BaseURL != "https://llm.example.com" {
		t.Errorf("AI_API_BASE_URL not bound: %s", cfg.AI.BaseURL)
	}
	if cfg.AI.Model != "test-model" {
		t.Errorf("AI_API_MODEL not bound: %s", cfg.AI.Model)
	}
	if cfg.Runner.TZ != "UTC" {
		t.Errorf("PIPELINE_TZ not bound: %s", cfg.Runner.TZ)
	}
	if !cfg.Mail.PlainOnly {
		t.Errorf("MAIL_PLAIN_ONLY not bound")
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("AI_API_TIMEOUT", "not-a-duration")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestDurationHelper(t *testing.T) {
	if d := Duration("", 30*time.Second); d != 30*time.Second {
		t.Errorf("empty input should use default, got %v", d)
	}
	if d := Duration("90s", 0); d != 90*time.Second {
		t.Errorf("expected 90s, got %v", d)
	}
	if d := Duration("garbage", time.Minute); d != time.Minute {
		t.Errorf("bad input should use default, got %v", d)
	}
}

func TestValidateAI(t *testing.T) {
	ai := AI{}
	if err := ai.ValidateAI(); err == nil {
		t.Fatalf("expected error for empty settings")
	}
	ai = AI{BaseURL: "https://llm.example.com", Model: "m", APIKey: "k"}
	if err := ai.ValidateAI(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
