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
	taptapTrendingSource   = "taptap_trending"
	taptapTrendingCategory = "game"
	taptapTrendingURL      = "https://www.taptap.cn/top/download"
	taptapTrendingMax      = 25
)

type taptapTrendingAdapter struct {
	pageURL string
}

func init() {
	sources.Register(&taptapTrendingAdapter{pageURL: taptapTrendingURL})
}

func (a *taptapTrendingAdapter) Source() string   { return taptapTrendingSource }
func (a *taptapTrendingAdapter) Category() string { return taptapTrendingCategory }

func (a *taptapTrendingAdapter) FetchTrending(ctx context.Context) ([]byte, error) {
	return sources.FetchURL(ctx, a.pageURL)
}

func (a *taptapTrendingAdapter) ProcessTrending(body []byte) ([]core.Entry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ranking page: %w", err)
	}

	var entries []core.Entry
	seen := make(map[string]bool)
	doc.Find(`a[href^="/app/"]`).Each(func(_ int, link *goquery.Selection) {
		if len(entries) >= taptapTrendingMax {
			return
		}
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if title == "" || seen[href] {
			return
		}
		seen[href] = true
		url := "https://www.taptap.cn" + href
		entries = append(entries, core.Entry{
			Title:     title,
			URL:       url,
			StoreLink: url,
		})
	})
	return entries, nil
}
