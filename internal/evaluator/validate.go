package evaluator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Review is a validated LLM response.
type Review struct {
	Scores      map[string]int
	Comment     string
	Summary     string
	SummaryLong string
	KeyConcepts []string
}

const maxKeyConcepts = 5

// ValidateResponse enforces the response contract: exact metric key set,
// integer scores in range, required review text. A response that fails here
// is retried; a response that passes is stored as-is.
func ValidateResponse(raw string, activeKeys []string) (*Review, error) {
	cleaned := trimFence(raw)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}

	scoresRaw, ok := top["dimension_scores"]
	if !ok {
		return nil, fmt.Errorf("response missing dimension_scores")
	}
	var rawScores map[string]float64
	if err := json.Unmarshal(scoresRaw, &rawScores); err != nil {
		return nil, fmt.Errorf("dimension_scores is not an object of numbers: %w", err)
	}

	if len(rawScores) != len(activeKeys) {
		return nil, fmt.Errorf("dimension_scores has %d keys, want %d", len(rawScores), len(activeKeys))
	}
	scores := make(map[string]int, len(activeKeys))
	for _, key := range activeKeys {
		value, ok := rawScores[key]
		if !ok {
			return nil, fmt.Errorf("dimension_scores missing metric %q", key)
		}
		score := int(math.Round(value))
		if score < 1 || score > 5 {
			return nil, fmt.Errorf("metric %q score %v out of range", key, value)
		}
		scores[key] = score
	}

	comment, err := requiredString(top, "comment")
	if err != nil {
		return nil, err
	}
	summary, err := requiredString(top, "summary")
	if err != nil {
		return nil, err
	}

	review := &Review{
		Scores:      scores,
		Comment:     collapseNewlines(comment),
		Summary:     collapseNewlines(summary),
		KeyConcepts: parseKeyConcepts(top["key_concepts"]),
	}

	if raw, ok := top["summary_long"]; ok {
		var long string
		json.Unmarshal(raw, &long)
		review.SummaryLong = strings.TrimSpace(long)
	}
	if review.SummaryLong == "" {
		review.SummaryLong = review.Summary
	}

	return review, nil
}

// trimFence strips a surrounding ``` or ```json fence.
func trimFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func requiredString(top map[string]json.RawMessage, key string) (string, error) {
	raw, ok := top[key]
	if !ok {
		return "", fmt.Errorf("response missing %q", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%q is not a string: %w", key, err)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%q is empty", key)
	}
	return s, nil
}

func collapseNewlines(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseKeyConcepts accepts missing/null, a delimited string, or an array.
// At most five concepts are kept, in order.
func parseKeyConcepts(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var concepts []string
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		concepts = splitConcepts(asString)
	} else {
		var asArray []any
		if err := json.Unmarshal(raw, &asArray); err != nil {
			return nil
		}
		for _, v := range asArray {
			concepts = append(concepts, strings.TrimSpace(fmt.Sprint(v)))
		}
	}

	out := concepts[:0]
	for _, c := range concepts {
		if c == "" {
			continue
		}
		out = append(out, c)
		if len(out) == maxKeyConcepts {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func splitConcepts(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', '、', '；', '，':
			return true
		}
		return false
	})
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}
