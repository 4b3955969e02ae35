package evaluator

import (
	"fmt"
	"os"
	"strings"

	"newsflow/internal/core"
)

// defaultPrompt is used when no prompt file is configured. The file format
// mirrors it: a <<SYS>> marker, the system preamble, a <<USER>> marker, the
// user template.
const defaultPrompt = `<<SYS>>
You are a news analyst for a technology and game-industry digest. Score each
article honestly along the given dimensions and answer in strict JSON only,
with no prose outside the JSON object.
<<USER>>
Score the article below on each dimension from 1 (worst) to 5 (best):

{{metrics_block}}

Reply with exactly this JSON shape:

{{schema_example}}

"comment" is one editorial sentence on why the article matters (中文).
"summary" is a 1-2 sentence factual summary (中文).
"key_concepts" lists up to five short topic keywords.
"summary_long" is an optional longer summary; leave empty to reuse "summary".

Article:
title: {{title}}
source: {{source}}
published: {{publish}}
content:
{{detail}}`

// Prompt is the parsed two-part template.
type Prompt struct {
	System       string
	UserTemplate string
}

// LoadPrompt reads and parses a prompt file, or the built-in default when
// path is empty.
func LoadPrompt(path string) (Prompt, error) {
	raw := defaultPrompt
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Prompt{}, fmt.Errorf("failed to read prompt file: %w", err)
		}
		raw = string(data)
	}
	return parsePrompt(raw)
}

func parsePrompt(raw string) (Prompt, error) {
	sysIdx := strings.Index(raw, "<<SYS>>")
	userIdx := strings.Index(raw, "<<USER>>")
	if sysIdx < 0 || userIdx < 0 || userIdx < sysIdx {
		return Prompt{}, fmt.Errorf("prompt must contain <<SYS>> followed by <<USER>>")
	}
	return Prompt{
		System:       strings.TrimSpace(raw[sysIdx+len("<<SYS>>") : userIdx]),
		UserTemplate: strings.TrimSpace(raw[userIdx+len("<<USER>>"):]),
	}, nil
}

// Expand performs the global substitutions that depend only on the metric
// set, leaving the per-article variables in place.
func (p Prompt) Expand(metrics []core.AiMetric) Prompt {
	var block strings.Builder
	for _, m := range metrics {
		fmt.Fprintf(&block, "- %s: %s", m.Key, m.Label)
		if m.RateGuide != "" {
			fmt.Fprintf(&block, " (%s)", m.RateGuide)
		}
		block.WriteString("\n")
	}

	var schema strings.Builder
	schema.WriteString("{\n  \"dimension_scores\": {")
	for i, m := range metrics {
		if i > 0 {
			schema.WriteString(", ")
		}
		fmt.Fprintf(&schema, "%q: 3", m.Key)
	}
	schema.WriteString("},\n")
	schema.WriteString("  \"comment\": \"...\",\n")
	schema.WriteString("  \"summary\": \"...\",\n")
	schema.WriteString("  \"key_concepts\": [\"...\"],\n")
	schema.WriteString("  \"summary_long\": \"...\"\n}")

	user := strings.ReplaceAll(p.UserTemplate, "{{metrics_block}}", strings.TrimRight(block.String(), "\n"))
	user = strings.ReplaceAll(user, "{{schema_example}}", schema.String())
	return Prompt{System: p.System, UserTemplate: user}
}

// maxPromptDetail bounds the article body injected into the prompt.
const maxPromptDetail = 6000

// ForArticle renders the user body for one article.
func (p Prompt) ForArticle(info core.Info) string {
	detail := info.Detail
	if len(detail) > maxPromptDetail {
		detail = detail[:maxPromptDetail]
	}
	user := strings.ReplaceAll(p.UserTemplate, "{{title}}", info.Title)
	user = strings.ReplaceAll(user, "{{source}}", info.Source)
	user = strings.ReplaceAll(user, "{{publish}}", info.Publish)
	user = strings.ReplaceAll(user, "{{detail}}", detail)
	return user
}
