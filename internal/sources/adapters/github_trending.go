package adapters

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsflow/internal/core"
	"newsflow/internal/sources"
)

const (
	githubTrendingSource   = "github_trending"
	githubTrendingCategory = "tech"
	githubTrendingURL      = "https://github.com/trending"
)

// githubTrendingAdapter scrapes the daily trending page. Repositories carry
// no publish time, so entries are stored undated and enter candidate windows
// through the insertion-time fallback in the store queries.
type githubTrendingAdapter struct {
	sources.DefaultDetail
	pageURL string
}

func init() {
	sources.Register(&githubTrendingAdapter{pageURL: githubTrendingURL})
}

func (a *githubTrendingAdapter) Source() string   { return githubTrendingSource }
func (a *githubTrendingAdapter) Category() string { return githubTrendingCategory }

func (a *githubTrendingAdapter) FetchTrending(ctx context.Context) ([]byte, error) {
	return sources.FetchURL(ctx, a.pageURL)
}

func (a *githubTrendingAdapter) ProcessTrending(body []byte) ([]core.Entry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse trending page: %w", err)
	}

	var entries []core.Entry
	doc.Find("article.Box-row").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("h2 a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		repo := strings.TrimPrefix(strings.TrimSpace(href), "/")
		desc := strings.TrimSpace(row.Find("p").First().Text())

		title := repo
		if desc != "" {
			title = fmt.Sprintf("%s - %s", repo, desc)
		}
		entries = append(entries, core.Entry{
			Title:  title,
			URL:    "https://github.com" + href,
			Detail: desc,
		})
	})
	return entries, nil
}
