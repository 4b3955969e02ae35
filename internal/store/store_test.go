package store

import (
	"testing"
	"time"

	"newsflow/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertInfoIfAbsent_DedupByLink(t *testing.T) {
	s := newTestStore(t)

	info := core.Info{
		Source:   "hackernews",
		Category: "tech",
		Publish:  "2026-08-20T07:30:00Z",
		Title:    "First title",
		Link:     "https://example.com/a",
	}

	id1, inserted, err := s.InsertInfoIfAbsent(info)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if !inserted {
		t.Error("expected first insert to create a row")
	}

	info.Title = "Different title for the same link"
	id2, inserted, err := s.InsertInfoIfAbsent(info)
	if err != nil {
		t.Fatalf("second insert failed: %v", err)
	}
	if inserted {
		t.Error("expected second insert to be a no-op")
	}
	if id1 != id2 {
		t.Errorf("expected same id for same link, got %d and %d", id1, id2)
	}

	got, err := s.GetInfoByLink(info.Link)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Title != "First title" {
		t.Errorf("existing row was modified: title = %q", got.Title)
	}
}

func TestUpdateInfoDetail_Backfill(t *testing.T) {
	s := newTestStore(t)

	for i, link := range []string{"https://e.com/1", "https://e.com/2", "https://e.com/3"} {
		info := core.Info{Source: "steam_news", Category: "game", Title: "t", Link: link}
		if i == 1 {
			info.Detail = "already filled"
		}
		if _, _, err := s.InsertInfoIfAbsent(info); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	candidates, err := s.ListDetailBackfillCandidates("steam_news", 50, 5)
	if err != nil {
		t.Fatalf("backfill query failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates with empty detail, got %d", len(candidates))
	}
	// Newest first.
	if candidates[0].Link != "https://e.com/3" {
		t.Errorf("expected newest candidate first, got %s", candidates[0].Link)
	}

	if err := s.UpdateInfoDetail(candidates[0].ID, "body text"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	candidates, err = s.ListDetailBackfillCandidates("steam_news", 50, 5)
	if err != nil {
		t.Fatalf("backfill query failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Errorf("expected 1 remaining candidate, got %d", len(candidates))
	}
}

func TestSaveEvaluation_ReviewedListingRequiresCompleteScores(t *testing.T) {
	s := newTestStore(t)

	metrics, err := s.ListActiveMetrics()
	if err != nil {
		t.Fatalf("list metrics failed: %v", err)
	}
	if len(metrics) == 0 {
		t.Fatal("expected seeded metrics")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	idFull, _, err := s.InsertInfoIfAbsent(core.Info{
		Source: "hackernews", Category: "tech", Publish: now,
		Title: "complete", Link: "https://e.com/full",
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	idPartial, _, err := s.InsertInfoIfAbsent(core.Info{
		Source: "hackernews", Category: "tech", Publish: now,
		Title: "partial", Link: "https://e.com/partial",
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	full := make([]core.InfoAiScore, 0, len(metrics))
	for _, m := range metrics {
		full = append(full, core.InfoAiScore{InfoID: idFull, MetricID: m.ID, Score: 4})
	}
	err = s.SaveEvaluation(full, core.InfoAiReview{
		InfoID: idFull, EvaluatorKey: "default", FinalScore: 4.0,
		AiComment: "solid", AiSummary: "summary", RawResponse: "{}",
	})
	if err != nil {
		t.Fatalf("save evaluation failed: %v", err)
	}

	// Only one metric scored: review exists but the score set is incomplete.
	err = s.SaveEvaluation(
		[]core.InfoAiScore{{InfoID: idPartial, MetricID: metrics[0].ID, Score: 3}},
		core.InfoAiReview{InfoID: idPartial, EvaluatorKey: "default", FinalScore: 3.0, AiComment: "c", AiSummary: "s", RawResponse: "{}"},
	)
	if err != nil {
		t.Fatalf("save evaluation failed: %v", err)
	}

	reviewed, err := s.ListReviewedInfos("default", CandidateFilter{})
	if err != nil {
		t.Fatalf("list reviewed failed: %v", err)
	}
	if len(reviewed) != 1 {
		t.Fatalf("expected 1 complete reviewed row, got %d", len(reviewed))
	}
	if reviewed[0].Info.ID != idFull {
		t.Errorf("expected the fully scored row, got info %d", reviewed[0].Info.ID)
	}
	if len(reviewed[0].Scores) != len(metrics) {
		t.Errorf("expected %d scores, got %d", len(metrics), len(reviewed[0].Scores))
	}

	unreviewed, err := s.ListUnreviewedInfos("other-evaluator", CandidateFilter{})
	if err != nil {
		t.Fatalf("list unreviewed failed: %v", err)
	}
	if len(unreviewed) != 2 {
		t.Errorf("expected both rows unreviewed for a different evaluator, got %d", len(unreviewed))
	}
}

func TestSaveEvaluation_OverwritesOnReEvaluation(t *testing.T) {
	s := newTestStore(t)
	metrics, _ := s.ListActiveMetrics()

	id, _, err := s.InsertInfoIfAbsent(core.Info{
		Source: "hackernews", Category: "tech", Title: "t", Link: "https://e.com/x",
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	save := func(score int, comment string) {
		t.Helper()
		scores := make([]core.InfoAiScore, 0, len(metrics))
		for _, m := range metrics {
			scores = append(scores, core.InfoAiScore{InfoID: id, MetricID: m.ID, Score: score})
		}
		err := s.SaveEvaluation(scores, core.InfoAiReview{
			InfoID: id, EvaluatorKey: "default", FinalScore: float64(score),
			AiComment: comment, AiSummary: "s", RawResponse: "{}",
		})
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}
	save(2, "first pass")
	save(5, "second pass")

	scores, err := s.GetScores(id)
	if err != nil {
		t.Fatalf("get scores failed: %v", err)
	}
	for key, score := range scores {
		if score != 5 {
			t.Errorf("metric %s: expected overwritten score 5, got %d", key, score)
		}
	}

	review, err := s.GetReview(id, "default")
	if err != nil {
		t.Fatalf("get review failed: %v", err)
	}
	if review == nil || review.AiComment != "second pass" {
		t.Errorf("expected overwritten review, got %+v", review)
	}
}

func TestPipelineWeekdaysRoundTrip(t *testing.T) {
	s := newTestStore(t)

	classID, err := s.UpsertPipelineClass(core.PipelineClass{
		Key: "test-class", Categories: []string{"tech"}, Evaluators: []string{"default"},
		Writers: []string{core.WriterEmailHTML},
	})
	if err != nil {
		t.Fatalf("upsert class failed: %v", err)
	}

	cases := []struct {
		name     string
		weekdays *[]int
	}{
		{"unrestricted", nil},
		{"never", &[]int{}},
		{"weekdays-only", &[]int{1, 2, 3, 4, 5}},
	}
	for _, tc := range cases {
		id, err := s.SavePipeline(core.Pipeline{
			Name: tc.name, Enabled: true, EvaluatorKey: "default",
			ClassID: classID, Weekdays: tc.weekdays,
		})
		if err != nil {
			t.Fatalf("%s: save failed: %v", tc.name, err)
		}
		got, err := s.GetPipelineByID(id)
		if err != nil {
			t.Fatalf("%s: get failed: %v", tc.name, err)
		}
		if (tc.weekdays == nil) != (got.Weekdays == nil) {
			t.Errorf("%s: nil-ness not preserved: want %v, got %v", tc.name, tc.weekdays, got.Weekdays)
			continue
		}
		if tc.weekdays != nil {
			if len(*got.Weekdays) != len(*tc.weekdays) {
				t.Errorf("%s: weekdays = %v, want %v", tc.name, *got.Weekdays, *tc.weekdays)
			}
		}
	}
}

func TestSaveDelivery_RequiresExactlyOneTransport(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveDelivery(1, core.Delivery{}); err == nil {
		t.Error("expected error for delivery with no transport")
	}
	both := core.Delivery{
		Email: &core.EmailDelivery{PipelineID: 1, Email: "a@b.c"},
		Chat:  &core.ChatDelivery{PipelineID: 1, AppID: "id"},
	}
	if err := s.SaveDelivery(1, both); err == nil {
		t.Error("expected error for delivery with both transports")
	}

	err := s.SaveDelivery(1, core.Delivery{
		Email: &core.EmailDelivery{PipelineID: 1, Email: "a@b.c", SubjectTpl: "Digest ${date_zh}"},
	})
	if err != nil {
		t.Fatalf("save email delivery failed: %v", err)
	}

	// Switching transports replaces the old one.
	err = s.SaveDelivery(1, core.Delivery{
		Chat: &core.ChatDelivery{PipelineID: 1, AppID: "app", AppSecret: "sec", ChatID: "oc_1"},
	})
	if err != nil {
		t.Fatalf("save chat delivery failed: %v", err)
	}
	d, err := s.GetDelivery(1)
	if err != nil {
		t.Fatalf("get delivery failed: %v", err)
	}
	if d.Email != nil {
		t.Error("expected email delivery to be cleared after switching to chat")
	}
	if d.Chat == nil || d.Chat.AppID != "app" {
		t.Errorf("unexpected chat delivery: %+v", d.Chat)
	}
}

func TestSourceRunRoundTrip(t *testing.T) {
	s := newTestStore(t)

	id, err := s.UpsertSource(core.Source{
		Key: "hackernews", Label: "Hacker News", CategoryKey: "tech", Enabled: true,
		Addresses: []string{"https://hacker-news.firebaseio.com/v0"},
	})
	if err != nil {
		t.Fatalf("upsert source failed: %v", err)
	}

	run, err := s.GetSourceRun(id)
	if err != nil {
		t.Fatalf("get run failed: %v", err)
	}
	if run != nil {
		t.Errorf("expected no run for a fresh source, got %+v", run)
	}

	at := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	if err := s.TouchSourceRun(id, at); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	run, err = s.GetSourceRun(id)
	if err != nil {
		t.Fatalf("get run failed: %v", err)
	}
	if run == nil || !run.LastRunAt.Equal(at) {
		t.Errorf("expected last run %v, got %+v", at, run)
	}
}

func TestListUnreviewedInfos_CategoryExemptSource(t *testing.T) {
	s := newTestStore(t)

	rows := []core.Info{
		{Source: "hackernews", Category: "ai", Title: "in category", Link: "https://e.com/ai"},
		{Source: "github_trending", Category: "tech", Title: "rescued source", Link: "https://e.com/rescued"},
		{Source: "techcrunch", Category: "tech", Title: "filtered out", Link: "https://e.com/out"},
	}
	for _, info := range rows {
		if _, _, err := s.InsertInfoIfAbsent(info); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	got, err := s.ListUnreviewedInfos("default", CandidateFilter{
		Categories:     []string{"ai"},
		CategoryExempt: []string{"github_trending"},
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	links := map[string]bool{}
	for _, info := range got {
		links[info.Link] = true
	}
	if !links["https://e.com/ai"] || !links["https://e.com/rescued"] {
		t.Errorf("expected the in-category and exempt-source rows, got %v", links)
	}
}

func TestListUnreviewedInfos_UndatedRowsUseInsertionTime(t *testing.T) {
	s := newTestStore(t)

	// An undated row (trending-style sources carry no publish time) and a row
	// published outside the window.
	undated := core.Info{Source: "github_trending", Category: "tech", Title: "undated", Link: "https://e.com/undated"}
	stale := core.Info{
		Source: "hackernews", Category: "tech", Title: "stale", Link: "https://e.com/stale",
		Publish: time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339),
	}
	for _, info := range []core.Info{undated, stale} {
		if _, _, err := s.InsertInfoIfAbsent(info); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	got, err := s.ListUnreviewedInfos("default", CandidateFilter{
		Since: time.Now().UTC().Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 1 || got[0].Link != "https://e.com/undated" {
		t.Fatalf("expected only the just-inserted undated row, got %+v", got)
	}

	got, err = s.ListUnreviewedInfos("default", CandidateFilter{
		Since: time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("future window must exclude the undated row, got %+v", got)
	}
}
