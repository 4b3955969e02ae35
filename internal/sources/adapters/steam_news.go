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
	steamNewsSource   = "steam_news"
	steamNewsCategory = "game"
	// Steam app news for the store-wide client updates feed.
	steamNewsAPI = "https://api.steampowered.com/ISteamNews/GetNewsForApp/v2/?appid=593110&count=20&maxlength=500&format=json"
)

type steamNewsAdapter struct {
	sources.DefaultDetail
	apiURL string
}

func init() {
	sources.Register(&steamNewsAdapter{apiURL: steamNewsAPI})
}

func (a *steamNewsAdapter) Source() string   { return steamNewsSource }
func (a *steamNewsAdapter) Category() string { return steamNewsCategory }

type steamNewsResponse struct {
	AppNews struct {
		NewsItems []struct {
			Title    string `json:"title"`
			URL      string `json:"url"`
			Author   string `json:"author"`
			Contents string `json:"contents"`
			Date     int64  `json:"date"`
		} `json:"newsitems"`
	} `json:"appnews"`
}

func (a *steamNewsAdapter) Collect(ctx context.Context) ([]core.Entry, error) {
	body, err := sources.FetchURL(ctx, a.apiURL)
	if err != nil {
		return nil, err
	}
	var resp steamNewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode steam news: %w", err)
	}

	entries := make([]core.Entry, 0, len(resp.AppNews.NewsItems))
	for _, item := range resp.AppNews.NewsItems {
		entries = append(entries, core.Entry{
			Title:     item.Title,
			URL:       item.URL,
			Published: time.Unix(item.Date, 0).UTC().Format(timeutil.Canonical),
			Creator:   item.Author,
			Detail:    item.Contents,
		})
	}
	return entries, nil
}
