package sources

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"newsflow/internal/core"
	"newsflow/internal/timeutil"
)

// FeedAdapter implements the feed capability for plain RSS/Atom sources.
// Source-specific adapters embed it and override what they need.
type FeedAdapter struct {
	DefaultDetail
	SourceKey   string
	CategoryKey string
	FeedURL     string
	MaxItems    int // <= 0 means all
}

func (f FeedAdapter) Source() string   { return f.SourceKey }
func (f FeedAdapter) Category() string { return f.CategoryKey }

func (f FeedAdapter) FetchFeed(ctx context.Context) ([]byte, error) {
	return FetchURL(ctx, f.FeedURL)
}

func (f FeedAdapter) ProcessEntries(body []byte) ([]core.Entry, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed for %s: %w", f.SourceKey, err)
	}

	entries := make([]core.Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if f.MaxItems > 0 && len(entries) >= f.MaxItems {
			break
		}
		entry := FeedItemToEntry(item)
		if entry.Title == "" || entry.URL == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// FeedItemToEntry maps one gofeed item to an entry record.
func FeedItemToEntry(item *gofeed.Item) core.Entry {
	entry := core.Entry{
		Title: item.Title,
		URL:   item.Link,
	}
	if item.PublishedParsed != nil {
		entry.Published = item.PublishedParsed.UTC().Format(timeutil.Canonical)
	} else if item.UpdatedParsed != nil {
		entry.Published = item.UpdatedParsed.UTC().Format(timeutil.Canonical)
	} else {
		entry.Published = timeutil.Normalize(item.Published)
	}
	if item.Author != nil {
		entry.Creator = item.Author.Name
	}
	if item.Image != nil {
		entry.Img = item.Image.URL
	}
	if entry.Img == "" {
		for _, enc := range item.Enclosures {
			if enc.Type == "image/jpeg" || enc.Type == "image/png" {
				entry.Img = enc.URL
				break
			}
		}
	}
	return entry
}

// ParseFeedTime formats a parsed feed time in the canonical form.
func ParseFeedTime(t time.Time) string {
	return t.UTC().Format(timeutil.Canonical)
}
