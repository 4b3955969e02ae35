package collector

import (
	"context"
	"testing"

	"newsflow/internal/core"
	"newsflow/internal/sources"
	"newsflow/internal/store"
)

type fakeAdapter struct {
	key      string
	entries  []core.Entry
	details  map[string]string
	collects int
}

func (f *fakeAdapter) Source() string   { return f.key }
func (f *fakeAdapter) Category() string { return "tech" }

func (f *fakeAdapter) Collect(ctx context.Context) ([]core.Entry, error) {
	f.collects++
	return f.entries, nil
}

func (f *fakeAdapter) FetchArticleDetail(ctx context.Context, url string) (string, error) {
	return f.details[url], nil
}

// bothAdapter exposes the feed capability alongside Collect so the
// dispatch order is observable.
type bothAdapter struct {
	fakeAdapter
	feedCalls int
}

func (b *bothAdapter) FetchFeed(ctx context.Context) ([]byte, error) {
	b.feedCalls++
	return nil, nil
}

func (b *bothAdapter) ProcessEntries(body []byte) ([]core.Entry, error) {
	b.feedCalls++
	return nil, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCollect_InsertsNormalizesAndDedupes(t *testing.T) {
	s := newTestStore(t)

	adapter := &fakeAdapter{
		key: "collector_test_src",
		entries: []core.Entry{
			{Title: "A", URL: "https://e.com/a", Published: "Thu, 20 Aug 2026 15:30:00 +0800"},
			{Title: "", URL: "https://e.com/untitled"},
			{Title: "No URL"},
			{Title: "A again", URL: "https://e.com/a"},
			{Title: "B", URL: "https://e.com/b", Category: "game"},
		},
		details: map[string]string{"https://e.com/a": "body of a"},
	}
	sources.Register(adapter)

	c := New(s, DefaultOptions())
	result := c.Collect(context.Background(), []string{"collector_test_src", "unknown_key"})

	if result.NewRows != 2 {
		t.Errorf("expected 2 new rows, got %d", result.NewRows)
	}
	if len(result.Failed) != 0 {
		t.Errorf("expected no failures, got %v", result.Failed)
	}

	a, err := s.GetInfoByLink("https://e.com/a")
	if err != nil || a == nil {
		t.Fatalf("expected row for /a, err=%v", err)
	}
	if a.Publish != "2026-08-20T07:30:00Z" {
		t.Errorf("expected normalized publish, got %q", a.Publish)
	}
	if a.Source != "collector_test_src" {
		t.Errorf("expected adapter source fill-in, got %q", a.Source)
	}
	if a.Detail != "body of a" {
		t.Errorf("expected detail fetched for new row, got %q", a.Detail)
	}

	b, _ := s.GetInfoByLink("https://e.com/b")
	if b == nil || b.Category != "game" {
		t.Fatalf("expected entry category to win over adapter default, got %+v", b)
	}

	// Source row materialized and run recorded.
	src, err := s.GetSourceByKey("collector_test_src")
	if err != nil || src == nil {
		t.Fatalf("expected source row, err=%v", err)
	}
	run, err := s.GetSourceRun(src.ID)
	if err != nil || run == nil {
		t.Fatalf("expected source run recorded, err=%v", err)
	}
}

func TestCollect_SecondRunAddsNothing(t *testing.T) {
	s := newTestStore(t)

	adapter := &fakeAdapter{
		key:     "collector_rerun_src",
		entries: []core.Entry{{Title: "A", URL: "https://rerun.com/a"}},
	}
	sources.Register(adapter)

	c := New(s, DefaultOptions())
	first := c.Collect(context.Background(), []string{"collector_rerun_src"})
	second := c.Collect(context.Background(), []string{"collector_rerun_src"})

	if first.NewRows != 1 || second.NewRows != 0 {
		t.Errorf("expected 1 then 0 new rows, got %d then %d", first.NewRows, second.NewRows)
	}
}

func TestCollect_BackfillBounded(t *testing.T) {
	s := newTestStore(t)

	details := make(map[string]string)
	var entries []core.Entry
	for i := 0; i < 8; i++ {
		url := "https://bf.com/" + string(rune('a'+i))
		entries = append(entries, core.Entry{Title: "t", URL: url})
		details[url] = "filled"
	}
	adapter := &fakeAdapter{key: "collector_backfill_src", entries: nil, details: details}
	sources.Register(adapter)

	// Seed rows without detail, bypassing the adapter.
	for _, e := range entries {
		if _, _, err := s.InsertInfoIfAbsent(core.Info{
			Source: "collector_backfill_src", Category: "tech", Title: e.Title, Link: e.URL,
		}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	opts := DefaultOptions()
	opts.BackfillLimit = 3
	c := New(s, opts)
	result := c.Collect(context.Background(), []string{"collector_backfill_src"})

	if result.Backfilled != 3 {
		t.Errorf("expected back-fill capped at 3, got %d", result.Backfilled)
	}
}

func TestInvoke_CollectorCapabilityWins(t *testing.T) {
	adapter := &bothAdapter{fakeAdapter: fakeAdapter{
		key:     "priority_src",
		entries: []core.Entry{{Title: "t", URL: "https://p.com/x"}},
	}}

	entries, err := invoke(context.Background(), adapter)
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if adapter.collects != 1 || adapter.feedCalls != 0 {
		t.Errorf("expected Collect to win over the feed capability (collects=%d feedCalls=%d)",
			adapter.collects, adapter.feedCalls)
	}
	if len(entries) != 1 {
		t.Errorf("expected entries passed through, got %d", len(entries))
	}
}

func TestInvoke_NoCapability(t *testing.T) {
	if _, err := invoke(context.Background(), noCapabilityAdapter{}); err == nil {
		t.Error("expected error for adapter with no capability")
	}
}

type noCapabilityAdapter struct{}

func (noCapabilityAdapter) Source() string   { return "bare" }
func (noCapabilityAdapter) Category() string { return "tech" }
