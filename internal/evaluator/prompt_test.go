package evaluator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"newsflow/internal/core"
)

func TestParsePrompt(t *testing.T) {
	p, err := parsePrompt("<<SYS>>\nsystem text\n<<USER>>\nuser {{title}}")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p.System != "system text" {
		t.Errorf("unexpected system %q", p.System)
	}
	if p.UserTemplate != "user {{title}}" {
		t.Errorf("unexpected user template %q", p.UserTemplate)
	}

	if _, err := parsePrompt("no markers here"); err == nil {
		t.Error("expected error for prompt without markers")
	}
	if _, err := parsePrompt("<<USER>>\nu\n<<SYS>>\ns"); err == nil {
		t.Error("expected error for reversed markers")
	}
}

func TestLoadPrompt_DefaultAndFile(t *testing.T) {
	p, err := LoadPrompt("")
	if err != nil {
		t.Fatalf("default prompt failed to parse: %v", err)
	}
	for _, v := range []string{"{{metrics_block}}", "{{schema_example}}", "{{title}}", "{{source}}", "{{publish}}", "{{detail}}"} {
		if !strings.Contains(p.UserTemplate, v) {
			t.Errorf("default user template missing %s", v)
		}
	}

	path := filepath.Join(t.TempDir(), "prompt.txt")
	os.WriteFile(path, []byte("<<SYS>>\ncustom sys\n<<USER>>\ncustom {{title}}"), 0644)
	p, err = LoadPrompt(path)
	if err != nil {
		t.Fatalf("file prompt failed: %v", err)
	}
	if p.System != "custom sys" {
		t.Errorf("unexpected system %q", p.System)
	}

	if _, err := LoadPrompt(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing prompt file")
	}
}

func TestExpandAndForArticle(t *testing.T) {
	metrics := []core.AiMetric{
		{Key: "timeliness", Label: "时效性", SortOrder: 1},
		{Key: "importance", Label: "重要性", SortOrder: 2},
	}
	p := Prompt{
		System:       "sys",
		UserTemplate: "metrics:\n{{metrics_block}}\nschema:\n{{schema_example}}\nT={{title}} S={{source}} P={{publish}}\n{{detail}}",
	}

	expanded := p.Expand(metrics)
	if !strings.Contains(expanded.UserTemplate, "- timeliness: 时效性") {
		t.Errorf("metrics block not substituted: %s", expanded.UserTemplate)
	}
	if !strings.Contains(expanded.UserTemplate, `"dimension_scores"`) {
		t.Error("schema example not substituted")
	}
	// Metric keys appear in sort order in the schema example.
	ti := strings.Index(expanded.UserTemplate, `"timeliness": 3`)
	im := strings.Index(expanded.UserTemplate, `"importance": 3`)
	if ti < 0 || im < 0 || ti > im {
		t.Errorf("schema keys out of order: %s", expanded.UserTemplate)
	}

	body := expanded.ForArticle(core.Info{
		Title: "Big News", Source: "theverge", Publish: "2026-08-20T07:30:00Z", Detail: "text",
	})
	for _, want := range []string{"T=Big News", "S=theverge", "P=2026-08-20T07:30:00Z"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in rendered body", want)
		}
	}
	if strings.Contains(body, "{{") {
		t.Errorf("unresolved variables remain: %s", body)
	}
}
