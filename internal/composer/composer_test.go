package composer

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"newsflow/internal/core"
	"newsflow/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedScored inserts an article with a full evaluation at a uniform score.
func seedScored(t *testing.T, s *store.Store, link, source, category string, score int, publish time.Time) int64 {
	t.Helper()
	id, _, err := s.InsertInfoIfAbsent(core.Info{
		Source: source, Category: category, Title: "Article " + link,
		Link: link, Publish: publish.UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}
	metrics, err := s.ListActiveMetrics()
	if err != nil {
		t.Fatalf("list metrics failed: %v", err)
	}
	var scores []core.InfoAiScore
	for _, m := range metrics {
		scores = append(scores, core.InfoAiScore{InfoID: id, MetricID: m.ID, Score: score})
	}
	err = s.SaveEvaluation(scores, core.InfoAiReview{
		InfoID: id, EvaluatorKey: "default", FinalScore: float64(score),
		AiComment: "点评" + link, AiSummary: "摘要" + link, RawResponse: "{}",
	})
	if err != nil {
		t.Fatalf("seed evaluation failed: %v", err)
	}
	return id
}

func equalWeights(t *testing.T, s *store.Store) map[string]float64 {
	t.Helper()
	metrics, err := s.ListActiveMetrics()
	if err != nil {
		t.Fatalf("list metrics failed: %v", err)
	}
	weights := make(map[string]float64)
	for _, m := range metrics {
		weights[m.Key] = 1
	}
	return weights
}

func TestCompose_RanksByScoreThenPublish(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	seedScored(t, s, "https://c.com/low", "src_a", "tech", 2, now.Add(-1*time.Hour))
	seedScored(t, s, "https://c.com/high", "src_a", "tech", 5, now.Add(-3*time.Hour))
	seedScored(t, s, "https://c.com/mid-old", "src_b", "tech", 4, now.Add(-5*time.Hour))
	seedScored(t, s, "https://c.com/mid-new", "src_b", "tech", 4, now.Add(-2*time.Hour))

	digest, err := Compose(s, Config{
		EvaluatorKey: "default", Hours: 24, Weights: equalWeights(t, s),
	}, now)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if len(digest.Sections) != 1 || digest.Total != 4 {
		t.Fatalf("unexpected digest shape: %+v", digest)
	}

	links := make([]string, 0, 4)
	for _, item := range digest.Sections[0].Items {
		links = append(links, item.Info.Link)
	}
	want := []string{"https://c.com/high", "https://c.com/mid-new", "https://c.com/mid-old", "https://c.com/low"}
	for i := range want {
		if links[i] != want[i] {
			t.Fatalf("order mismatch: got %v, want %v", links, want)
		}
	}
}

func TestCompose_WindowExcludesOldRows(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	seedScored(t, s, "https://c.com/recent", "src_a", "tech", 4, now.Add(-2*time.Hour))
	seedScored(t, s, "https://c.com/stale", "src_a", "tech", 5, now.Add(-80*time.Hour))

	digest, err := Compose(s, Config{
		EvaluatorKey: "default", Hours: 24, Weights: equalWeights(t, s),
	}, now)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if digest.Total != 1 || digest.Sections[0].Items[0].Info.Link != "https://c.com/recent" {
		t.Errorf("expected only the recent row, got %+v", digest)
	}
}

func TestCompose_SourceBonusAndMinScore(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	seedScored(t, s, "https://c.com/boosted", "favored", "tech", 3, now)
	seedScored(t, s, "https://c.com/plain", "ordinary", "tech", 3, now)

	digest, err := Compose(s, Config{
		EvaluatorKey: "default", Hours: 24, Weights: equalWeights(t, s),
		SourceBonus: map[string]float64{"favored": 0.5},
		MinScore:    3.2,
	}, now)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if digest.Total != 1 {
		t.Fatalf("expected min_score to drop the plain row, got %d items", digest.Total)
	}
	item := digest.Sections[0].Items[0]
	if item.Info.Source != "favored" || item.Score != 3.5 {
		t.Errorf("unexpected surviving item %+v", item)
	}
}

func TestCompose_PerSourceCap(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		seedScored(t, s, fmt.Sprintf("https://c.com/noisy-%d", i), "noisy", "tech", 5, now)
	}
	seedScored(t, s, "https://c.com/quiet", "quiet", "tech", 3, now)

	digest, err := Compose(s, Config{
		EvaluatorKey: "default", Hours: 24, Weights: equalWeights(t, s), PerSourceCap: 2,
	}, now)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	counts := make(map[string]int)
	for _, item := range digest.Sections[0].Items {
		counts[item.Info.Source]++
	}
	if counts["noisy"] != 2 {
		t.Errorf("expected noisy capped at 2, got %d", counts["noisy"])
	}
	if counts["quiet"] != 1 {
		t.Errorf("expected quiet kept, got %d", counts["quiet"])
	}
}

func TestCompose_PerCategoryLimit(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	for i := 0; i < 15; i++ {
		seedScored(t, s, fmt.Sprintf("https://c.com/t-%d", i), fmt.Sprintf("src%d", i), "tech", 4, now)
	}
	for i := 0; i < 15; i++ {
		seedScored(t, s, fmt.Sprintf("https://c.com/g-%d", i), fmt.Sprintf("gsrc%d", i), "game", 4, now)
	}

	digest, err := Compose(s, Config{
		EvaluatorKey: "default", Hours: 24, Weights: equalWeights(t, s),
		LimitPerCategory: map[string]int{"tech": 3, "default": 5},
	}, now)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	for _, section := range digest.Sections {
		switch section.Category {
		case "tech":
			if len(section.Items) != 3 {
				t.Errorf("tech: expected explicit limit 3, got %d", len(section.Items))
			}
		case "game":
			if len(section.Items) != 5 {
				t.Errorf("game: expected default-entry limit 5, got %d", len(section.Items))
			}
		}
	}

	// No limit map at all: fallback cap of 10.
	digest, err = Compose(s, Config{
		EvaluatorKey: "default", Hours: 24, Weights: equalWeights(t, s),
	}, now)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	for _, section := range digest.Sections {
		if len(section.Items) != 10 {
			t.Errorf("%s: expected fallback limit 10, got %d", section.Category, len(section.Items))
		}
	}

	// Zero limit means no cap.
	digest, err = Compose(s, Config{
		EvaluatorKey: "default", Hours: 24, Weights: equalWeights(t, s),
		LimitPerCategory: map[string]int{"default": 0},
	}, now)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if digest.Total != 30 {
		t.Errorf("expected uncapped digest of 30, got %d", digest.Total)
	}
}

func TestCompose_WeightedRankingFavorsRelevantCategory(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	// A game article strong only on game_relevance vs a tech article strong
	// elsewhere; zeroing every other metric must rank the game article first.
	gameID, _, _ := s.InsertInfoIfAbsent(core.Info{
		Source: "s1", Category: "game", Title: "game one",
		Link: "https://c.com/game", Publish: now.UTC().Format(time.RFC3339),
	})
	techID, _, _ := s.InsertInfoIfAbsent(core.Info{
		Source: "s2", Category: "game", Title: "tech one",
		Link: "https://c.com/tech", Publish: now.UTC().Format(time.RFC3339),
	})

	metrics, _ := s.ListActiveMetrics()
	scoreFor := func(id int64, relevance, others int) {
		var scores []core.InfoAiScore
		for _, m := range metrics {
			v := others
			if m.Key == "game_relevance" {
				v = relevance
			}
			scores = append(scores, core.InfoAiScore{InfoID: id, MetricID: m.ID, Score: v})
		}
		if err := s.SaveEvaluation(scores, core.InfoAiReview{
			InfoID: id, EvaluatorKey: "default", FinalScore: 3,
			AiComment: "c", AiSummary: "s", RawResponse: "{}",
		}); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	scoreFor(gameID, 5, 1)
	scoreFor(techID, 1, 5)

	weights := map[string]float64{"game_relevance": 1}
	for _, m := range metrics {
		if m.Key != "game_relevance" {
			weights[m.Key] = 0
		}
	}

	digest, err := Compose(s, Config{
		EvaluatorKey: "default", Hours: 24, Weights: weights,
	}, now)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	items := digest.Sections[0].Items
	if items[0].Info.Link != "https://c.com/game" {
		t.Errorf("expected game article first under game_relevance-only weights, got %s", items[0].Info.Link)
	}
	if items[0].Score != 5.0 || items[1].Score != 1.0 {
		t.Errorf("unexpected scores %v / %v", items[0].Score, items[1].Score)
	}
}

func TestResolveWeights_Chain(t *testing.T) {
	metrics := []core.AiMetric{
		{Key: "a", DefaultWeight: 1},
		{Key: "b", DefaultWeight: 2},
		{Key: "c", DefaultWeight: 3},
	}
	weights := ResolveWeights(metrics,
		map[string]float64{"b": 5},
		map[string]float64{"c": 0},
	)
	if weights["a"] != 1 || weights["b"] != 5 || weights["c"] != 0 {
		t.Errorf("unexpected resolution %v", weights)
	}
}

func TestStarRow(t *testing.T) {
	cases := map[float64]string{
		5.0:  "★★★★★",
		4.5:  "★★★★½",
		3.49: "★★★",
		3.5:  "★★★½",
		1.0:  "★",
	}
	for score, want := range cases {
		if got := StarRow(score); got != want {
			t.Errorf("StarRow(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestRenderChatMarkdown(t *testing.T) {
	long := strings.Repeat("标题", 80)
	digest := &Digest{
		Sections: []Section{{
			Category: "game",
			Items: []Item{
				{Info: core.Info{Title: "Short title", Link: "https://e.com/1", Source: "src"}, Score: 3.5},
				{Info: core.Info{Title: long, Link: "https://e.com/2", Source: "src"}, Score: 4.0},
			},
		}},
		GeneratedAt: time.Now(),
		Total:       2,
	}

	out := RenderChatMarkdown(digest)
	if !strings.Contains(out, "**game**") {
		t.Error("expected bold category heading")
	}
	if !strings.Contains(out, "1. (AI推荐:★★★½) Short title ([src](https://e.com/1))") {
		t.Errorf("unexpected line format:\n%s", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "2. ") {
			title := strings.SplitN(line, ") ", 2)[1]
			title = strings.SplitN(title, " ([", 2)[0]
			if n := len([]rune(title)); n > 100 {
				t.Errorf("title not truncated: %d runes", n)
			}
		}
	}
}

func TestRenderHTML(t *testing.T) {
	digest := &Digest{
		Sections: []Section{{
			Category: "tech",
			Items: []Item{{
				Info:   core.Info{Title: "A <script> title", Link: "https://e.com/1", Source: "src", Publish: "2026-08-20T07:30:00Z"},
				Review: core.InfoAiReview{AiComment: "值得一读", AiSummary: "摘要内容"},
				Scores: map[string]int{"timeliness": 4},
				Score:  4.25,
				Bonus:  0.5,
			}},
		}},
		GeneratedAt: time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC),
		Total:       1,
	}

	html, err := RenderHTML(digest, HTMLOptions{
		Title:           "每日摘要",
		FrontendBaseURL: "https://news.example.com",
		RecipientEmail:  "reader@example.com",
		Metrics:         []core.AiMetric{{Key: "timeliness", Label: "时效性"}},
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	for _, want := range []string{
		"★★★★",
		"4.25",
		"时效性 4",
		// html/template escapes the plus sign in the bonus suffix.
		"加成 &#43;0.5",
		"值得一读",
		"unsubscribe?email=reader%40example.com",
		"subscriptions?email=reader%40example.com",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in HTML output", want)
		}
	}
	if strings.Contains(html, "<script> title") {
		t.Error("expected title to be HTML-escaped")
	}

	// Without footer configuration the links disappear.
	html, err = RenderHTML(digest, HTMLOptions{Title: "t"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(html, "退订") {
		t.Error("expected no footer without base URL and recipient")
	}
}
