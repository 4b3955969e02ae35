// Package sources defines the scraper adapter contract and the static
// registry mapping source keys to adapters.
package sources

import (
	"context"

	"newsflow/internal/core"
)

// Adapter is the minimal surface every source adapter provides. Capability
// interfaces below extend it; the collector probes them in a fixed priority
// order and dispatches the first match.
type Adapter interface {
	// Source returns the stable source key, e.g. "hackernews".
	Source() string
	// Category returns the category key this source belongs to.
	Category() string
}

// Collector is capability 1: the adapter owns its whole collection loop and
// returns finished entry records.
type Collector interface {
	Adapter
	Collect(ctx context.Context) ([]core.Entry, error)
}

// HomepageScraper is capability 2: fetch the homepage, then parse it.
type HomepageScraper interface {
	Adapter
	FetchHomepage(ctx context.Context) ([]byte, error)
	ParseHomepage(body []byte) ([]core.Entry, error)
}

// TrendingScraper is capability 3: fetch a trending page, then process it.
type TrendingScraper interface {
	Adapter
	FetchTrending(ctx context.Context) ([]byte, error)
	ProcessTrending(body []byte) ([]core.Entry, error)
}

// ListScraper is capability 4: fetch a list page, then parse it.
type ListScraper interface {
	Adapter
	FetchList(ctx context.Context) ([]byte, error)
	ParseList(body []byte) ([]core.Entry, error)
}

// FeedScraper is capability 5: fetch an RSS/Atom feed, then process its
// entries.
type FeedScraper interface {
	Adapter
	FetchFeed(ctx context.Context) ([]byte, error)
	ProcessEntries(body []byte) ([]core.Entry, error)
}

// DetailFetcher is the optional detail capability: resolve an article URL to
// its readable plain text.
type DetailFetcher interface {
	FetchArticleDetail(ctx context.Context, url string) (string, error)
}
