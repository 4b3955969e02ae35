package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"newsflow/internal/core"
	"newsflow/internal/sources"
	"newsflow/internal/timeutil"
)

const (
	hackerNewsSource   = "hackernews"
	hackerNewsCategory = "tech"
	hackerNewsAPI      = "https://hacker-news.firebaseio.com/v0"
	hackerNewsMaxItems = 30
)

// hackerNewsAdapter walks the top-stories id list and resolves each item
// through the Firebase API, so it owns its whole collection loop.
type hackerNewsAdapter struct {
	sources.DefaultDetail
	apiBase string
}

func init() {
	sources.Register(&hackerNewsAdapter{apiBase: hackerNewsAPI})
}

func (a *hackerNewsAdapter) Source() string   { return hackerNewsSource }
func (a *hackerNewsAdapter) Category() string { return hackerNewsCategory }

type hnItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	By    string `json:"by"`
	Time  int64  `json:"time"`
	Type  string `json:"type"`
	Dead  bool   `json:"dead"`
}

func (a *hackerNewsAdapter) Collect(ctx context.Context) ([]core.Entry, error) {
	body, err := sources.FetchURL(ctx, a.apiBase+"/topstories.json")
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode top stories: %w", err)
	}
	if len(ids) > hackerNewsMaxItems {
		ids = ids[:hackerNewsMaxItems]
	}

	var entries []core.Entry
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		itemBody, err := sources.FetchURL(ctx, fmt.Sprintf("%s/item/%d.json", a.apiBase, id))
		if err != nil {
			continue
		}
		var item hnItem
		if err := json.Unmarshal(itemBody, &item); err != nil || item.Dead || item.Type != "story" {
			continue
		}
		url := item.URL
		if url == "" {
			url = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", item.ID)
		}
		entries = append(entries, core.Entry{
			Title:     item.Title,
			URL:       url,
			Published: time.Unix(item.Time, 0).UTC().Format(timeutil.Canonical),
			Creator:   item.By,
		})
	}
	return entries, nil
}
