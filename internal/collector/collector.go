// Package collector turns registered source adapters into stored article
// rows. The runner decides which sources to run; the collector never
// time-gates on its own.
package collector

import (
	"context"
	"fmt"
	"time"

	"newsflow/internal/core"
	"newsflow/internal/logger"
	"newsflow/internal/sources"
	"newsflow/internal/store"
	"newsflow/internal/timeutil"
)

// Options tunes one collection batch.
type Options struct {
	AdapterBudget time.Duration // Wall-clock budget per adapter
	BackfillLimit int           // Detail rows back-filled per adapter run
	BackfillScan  int           // Newest rows considered for back-fill
}

// DefaultOptions mirror the production settings.
func DefaultOptions() Options {
	return Options{
		AdapterBudget: 30 * time.Second,
		BackfillLimit: 5,
		BackfillScan:  50,
	}
}

// Result summarizes one collection batch.
type Result struct {
	NewRows    int
	Backfilled int
	Failed     []string // Source keys whose adapter failed outright
}

// Collector drives adapters and persists their entries.
type Collector struct {
	store *store.Store
	opts  Options
	now   func() time.Time
}

func New(s *store.Store, opts Options) *Collector {
	if opts.AdapterBudget <= 0 {
		opts.AdapterBudget = DefaultOptions().AdapterBudget
	}
	if opts.BackfillLimit <= 0 {
		opts.BackfillLimit = DefaultOptions().BackfillLimit
	}
	if opts.BackfillScan <= 0 {
		opts.BackfillScan = DefaultOptions().BackfillScan
	}
	return &Collector{store: s, opts: opts, now: time.Now}
}

// SetClock overrides the collector's time source for tests.
func (c *Collector) SetClock(now func() time.Time) { c.now = now }

// Collect runs every requested source key. Unknown keys and failing adapters
// are logged and skipped; one bad source never aborts the batch.
func (c *Collector) Collect(ctx context.Context, sourceKeys []string) Result {
	var result Result
	for _, key := range sourceKeys {
		adapter, ok := sources.Lookup(key)
		if !ok {
			logger.Warn("unknown source key, skipping", "source", key)
			continue
		}

		newRows, backfilled, err := c.collectOne(ctx, adapter)
		result.NewRows += newRows
		result.Backfilled += backfilled
		if err != nil {
			logger.Error("source collection failed", err, "source", key)
			result.Failed = append(result.Failed, key)
			continue
		}
		logger.Info("source collected", "source", key, "new_rows", newRows, "backfilled", backfilled)
	}
	return result
}

func (c *Collector) collectOne(ctx context.Context, adapter sources.Adapter) (int, int, error) {
	budgetCtx, cancel := context.WithTimeout(ctx, c.opts.AdapterBudget)
	defer cancel()

	entries, err := invoke(budgetCtx, adapter)
	if err != nil {
		return 0, 0, err
	}

	detailFetcher, _ := adapter.(sources.DetailFetcher)

	var newRows int
	for _, entry := range entries {
		if entry.Title == "" || entry.URL == "" {
			continue
		}
		info := c.entryToInfo(adapter, entry)

		id, inserted, err := c.store.InsertInfoIfAbsent(info)
		if err != nil {
			logger.Error("failed to insert article", err, "source", adapter.Source(), "link", info.Link)
			continue
		}
		if !inserted {
			continue
		}
		newRows++

		if info.Detail == "" && detailFetcher != nil {
			detail, err := detailFetcher.FetchArticleDetail(ctx, info.Link)
			if err != nil {
				logger.Warn("detail fetch failed", "source", adapter.Source(), "link", info.Link, "error", err.Error())
				continue
			}
			if detail != "" {
				if err := c.store.UpdateInfoDetail(id, detail); err != nil {
					logger.Error("failed to store detail", err, "info_id", id)
				}
			}
		}
	}

	backfilled := 0
	if detailFetcher != nil {
		backfilled = c.backfill(ctx, adapter.Source(), detailFetcher)
	}

	src, err := c.store.GetSourceByKey(adapter.Source())
	if err != nil {
		return newRows, backfilled, err
	}
	if src == nil {
		// First run for a registry-only source: materialize its row.
		id, err := c.store.UpsertSource(core.Source{
			Key:         adapter.Source(),
			Label:       adapter.Source(),
			CategoryKey: adapter.Category(),
			Enabled:     true,
		})
		if err != nil {
			return newRows, backfilled, err
		}
		src = &core.Source{ID: id}
	}
	if err := c.store.TouchSourceRun(src.ID, c.now().UTC()); err != nil {
		return newRows, backfilled, err
	}

	return newRows, backfilled, nil
}

// invoke dispatches the first capability the adapter implements. The order
// is fixed; it must not depend on how the adapter happens to be declared.
func invoke(ctx context.Context, adapter sources.Adapter) ([]core.Entry, error) {
	switch a := adapter.(type) {
	case sources.Collector:
		return a.Collect(ctx)
	case sources.HomepageScraper:
		body, err := a.FetchHomepage(ctx)
		if err != nil {
			return nil, err
		}
		return a.ParseHomepage(body)
	case sources.TrendingScraper:
		body, err := a.FetchTrending(ctx)
		if err != nil {
			return nil, err
		}
		return a.ProcessTrending(body)
	case sources.ListScraper:
		body, err := a.FetchList(ctx)
		if err != nil {
			return nil, err
		}
		return a.ParseList(body)
	case sources.FeedScraper:
		body, err := a.FetchFeed(ctx)
		if err != nil {
			return nil, err
		}
		return a.ProcessEntries(body)
	default:
		return nil, fmt.Errorf("adapter %s exposes no collection capability", adapter.Source())
	}
}

// entryToInfo fills adapter defaults and normalizes the publish time.
func (c *Collector) entryToInfo(adapter sources.Adapter, entry core.Entry) core.Info {
	info := core.Info{
		Source:    entry.Source,
		Category:  entry.Category,
		Publish:   timeutil.Normalize(entry.Published),
		Title:     entry.Title,
		Detail:    entry.Detail,
		Link:      entry.URL,
		StoreLink: entry.StoreLink,
		Creator:   entry.Creator,
		ImgLink:   entry.Img,
	}
	if info.Source == "" {
		info.Source = adapter.Source()
	}
	if info.Category == "" {
		info.Category = adapter.Category()
	}
	return info
}

// backfill fetches details for recent rows of the source that still lack
// one. Bounded so one run never hammers a site.
func (c *Collector) backfill(ctx context.Context, sourceKey string, fetcher sources.DetailFetcher) int {
	candidates, err := c.store.ListDetailBackfillCandidates(sourceKey, c.opts.BackfillScan, c.opts.BackfillLimit)
	if err != nil {
		logger.Error("backfill query failed", err, "source", sourceKey)
		return 0
	}

	filled := 0
	for _, info := range candidates {
		detail, err := fetcher.FetchArticleDetail(ctx, info.Link)
		if err != nil || detail == "" {
			continue
		}
		if err := c.store.UpdateInfoDetail(info.ID, detail); err != nil {
			logger.Error("failed to store backfilled detail", err, "info_id", info.ID)
			continue
		}
		filled++
	}
	return filled
}
