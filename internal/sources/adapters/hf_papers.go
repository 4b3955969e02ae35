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
	hfPapersSource   = "hf_papers"
	hfPapersCategory = "ai"
	hfPapersURL      = "https://huggingface.co/papers"
)

// hfPapersAdapter scrapes the daily papers homepage.
type hfPapersAdapter struct {
	sources.DefaultDetail
	pageURL string
}

func init() {
	sources.Register(&hfPapersAdapter{pageURL: hfPapersURL})
}

func (a *hfPapersAdapter) Source() string   { return hfPapersSource }
func (a *hfPapersAdapter) Category() string { return hfPapersCategory }

func (a *hfPapersAdapter) FetchHomepage(ctx context.Context) ([]byte, error) {
	return sources.FetchURL(ctx, a.pageURL)
}

func (a *hfPapersAdapter) ParseHomepage(body []byte) ([]core.Entry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse papers page: %w", err)
	}

	var entries []core.Entry
	seen := make(map[string]bool)
	doc.Find(`a[href^="/papers/"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if title == "" || seen[href] {
			return
		}
		// Skip pagination and anchor links; paper paths end in an arXiv id.
		if strings.Contains(href, "?") || strings.Count(href, "/") != 2 {
			return
		}
		seen[href] = true
		entries = append(entries, core.Entry{
			Title: title,
			URL:   "https://huggingface.co" + href,
		})
	})
	return entries, nil
}
