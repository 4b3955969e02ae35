package evaluator

import (
	"strings"
	"testing"
)

var testKeys = []string{"timeliness", "importance"}

func validBody() string {
	return `{
		"dimension_scores": {"timeliness": 4, "importance": 3},
		"comment": "worth reading",
		"summary": "a thing happened",
		"key_concepts": ["go", "llm"],
		"summary_long": "a longer account of the thing"
	}`
}

func TestValidateResponse_Valid(t *testing.T) {
	review, err := ValidateResponse(validBody(), testKeys)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if review.Scores["timeliness"] != 4 || review.Scores["importance"] != 3 {
		t.Errorf("unexpected scores %v", review.Scores)
	}
	if review.SummaryLong != "a longer account of the thing" {
		t.Errorf("unexpected summary_long %q", review.SummaryLong)
	}
}

func TestValidateResponse_TrimsFence(t *testing.T) {
	fenced := "```json\n" + validBody() + "\n```"
	if _, err := ValidateResponse(fenced, testKeys); err != nil {
		t.Errorf("expected fenced response to validate, got %v", err)
	}
	fenced = "```\n" + validBody() + "\n```"
	if _, err := ValidateResponse(fenced, testKeys); err != nil {
		t.Errorf("expected bare-fenced response to validate, got %v", err)
	}
}

func TestValidateResponse_RoundsScores(t *testing.T) {
	body := `{"dimension_scores": {"timeliness": 4.5, "importance": 4.4},
		"comment": "c", "summary": "s"}`
	review, err := ValidateResponse(body, testKeys)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if review.Scores["timeliness"] != 5 {
		t.Errorf("4.5 should round to 5, got %d", review.Scores["timeliness"])
	}
	if review.Scores["importance"] != 4 {
		t.Errorf("4.4 should round to 4, got %d", review.Scores["importance"])
	}
}

func TestValidateResponse_RejectsOutOfRange(t *testing.T) {
	body := `{"dimension_scores": {"timeliness": 9, "importance": 3},
		"comment": "c", "summary": "s"}`
	if _, err := ValidateResponse(body, testKeys); err == nil {
		t.Error("expected out-of-range score to be rejected")
	}
	body = `{"dimension_scores": {"timeliness": 0.2, "importance": 3},
		"comment": "c", "summary": "s"}`
	if _, err := ValidateResponse(body, testKeys); err == nil {
		t.Error("expected score rounding to 0 to be rejected")
	}
}

func TestValidateResponse_ExactKeySet(t *testing.T) {
	missing := `{"dimension_scores": {"timeliness": 4}, "comment": "c", "summary": "s"}`
	if _, err := ValidateResponse(missing, testKeys); err == nil {
		t.Error("expected missing metric to be rejected")
	}
	extra := `{"dimension_scores": {"timeliness": 4, "importance": 3, "bogus": 5},
		"comment": "c", "summary": "s"}`
	if _, err := ValidateResponse(extra, testKeys); err == nil {
		t.Error("expected extra metric to be rejected")
	}
}

func TestValidateResponse_RequiresCommentAndSummary(t *testing.T) {
	noComment := `{"dimension_scores": {"timeliness": 4, "importance": 3}, "summary": "s"}`
	if _, err := ValidateResponse(noComment, testKeys); err == nil {
		t.Error("expected missing comment to be rejected")
	}
	blankSummary := `{"dimension_scores": {"timeliness": 4, "importance": 3},
		"comment": "c", "summary": "   "}`
	if _, err := ValidateResponse(blankSummary, testKeys); err == nil {
		t.Error("expected blank summary to be rejected")
	}
}

func TestValidateResponse_CollapsesNewlines(t *testing.T) {
	body := `{"dimension_scores": {"timeliness": 4, "importance": 3},
		"comment": "line one\nline two", "summary": "a\n\nb"}`
	review, err := ValidateResponse(body, testKeys)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if review.Comment != "line one line two" {
		t.Errorf("unexpected comment %q", review.Comment)
	}
	if review.Summary != "a b" {
		t.Errorf("unexpected summary %q", review.Summary)
	}
}

func TestValidateResponse_KeyConceptForms(t *testing.T) {
	base := `{"dimension_scores": {"timeliness": 4, "importance": 3},
		"comment": "c", "summary": "s", "key_concepts": %s}`

	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"missing", "null", nil},
		{"comma string", `"go, llm, infra"`, []string{"go", "llm", "infra"}},
		{"cjk separators", `"引擎、渲染；网络，工具"`, []string{"引擎", "渲染", "网络", "工具"}},
		{"array", `["a", "b"]`, []string{"a", "b"}},
		{"capped at five", `["1","2","3","4","5","6","7"]`, []string{"1", "2", "3", "4", "5"}},
	}
	for _, tc := range cases {
		review, err := ValidateResponse(strings.Replace(base, "%s", tc.raw, 1), testKeys)
		if err != nil {
			t.Fatalf("%s: validate failed: %v", tc.name, err)
		}
		if len(review.KeyConcepts) != len(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, review.KeyConcepts, tc.want)
			continue
		}
		for i := range tc.want {
			if review.KeyConcepts[i] != tc.want[i] {
				t.Errorf("%s: got %v, want %v", tc.name, review.KeyConcepts, tc.want)
				break
			}
		}
	}
}

func TestValidateResponse_SummaryLongFallsBack(t *testing.T) {
	body := `{"dimension_scores": {"timeliness": 4, "importance": 3},
		"comment": "c", "summary": "short one", "summary_long": ""}`
	review, err := ValidateResponse(body, testKeys)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if review.SummaryLong != "short one" {
		t.Errorf("expected summary_long fallback, got %q", review.SummaryLong)
	}
}

func TestValidateResponse_RejectsNonJSON(t *testing.T) {
	if _, err := ValidateResponse("I think this article is great!", testKeys); err == nil {
		t.Error("expected prose response to be rejected")
	}
	if _, err := ValidateResponse(`["not", "an", "object"]`, testKeys); err == nil {
		t.Error("expected array response to be rejected")
	}
}
