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
	googlePlayTopSource   = "googleplay_top"
	googlePlayTopCategory = "game"
	googlePlayTopURL      = "https://play.google.com/store/games"
	googlePlayTopMax      = 25
)

type googlePlayTopAdapter struct {
	pageURL string
}

func init() {
	sources.Register(&googlePlayTopAdapter{pageURL: googlePlayTopURL})
}

func (a *googlePlayTopAdapter) Source() string   { return googlePlayTopSource }
func (a *googlePlayTopAdapter) Category() string { return googlePlayTopCategory }

func (a *googlePlayTopAdapter) FetchHomepage(ctx context.Context) ([]byte, error) {
	return sources.FetchURL(ctx, a.pageURL)
}

func (a *googlePlayTopAdapter) ParseHomepage(body []byte) ([]core.Entry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse store page: %w", err)
	}

	var entries []core.Entry
	seen := make(map[string]bool)
	doc.Find(`a[href^="/store/apps/details"]`).Each(func(_ int, link *goquery.Selection) {
		if len(entries) >= googlePlayTopMax {
			return
		}
		href, _ := link.Attr("href")
		if seen[href] {
			return
		}
		title := strings.TrimSpace(link.Find("span").First().Text())
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}
		if title == "" {
			return
		}
		seen[href] = true
		url := "https://play.google.com" + href
		entries = append(entries, core.Entry{
			Title:     title,
			URL:       url,
			StoreLink: url,
		})
	})
	return entries, nil
}
