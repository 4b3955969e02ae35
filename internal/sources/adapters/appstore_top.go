package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"newsflow/internal/core"
	"newsflow/internal/sources"
	"newsflow/internal/timeutil"
)

const (
	appStoreTopSource   = "appstore_top"
	appStoreTopCategory = "game"
	appStoreTopAPI      = "https://rss.marketingtools.apple.com/api/v2/us/apps/top-free/25/apps.json"
)

// appStoreTopAdapter reads the marketing-tools chart feed. Chart rows carry a
// store link rather than an article link.
type appStoreTopAdapter struct {
	apiURL string
}

func init() {
	sources.Register(&appStoreTopAdapter{apiURL: appStoreTopAPI})
}

func (a *appStoreTopAdapter) Source() string   { return appStoreTopSource }
func (a *appStoreTopAdapter) Category() string { return appStoreTopCategory }

type appStoreFeed struct {
	Feed struct {
		Updated string `json:"updated"`
		Results []struct {
			ArtistName string `json:"artistName"`
			Name       string `json:"name"`
			URL        string `json:"url"`
			ArtworkURL string `json:"artworkUrl100"`
		} `json:"results"`
	} `json:"feed"`
}

func (a *appStoreTopAdapter) Collect(ctx context.Context) ([]core.Entry, error) {
	body, err := sources.FetchURL(ctx, a.apiURL)
	if err != nil {
		return nil, err
	}
	var feed appStoreFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to decode chart feed: %w", err)
	}

	published := timeutil.Normalize(feed.Feed.Updated)
	entries := make([]core.Entry, 0, len(feed.Feed.Results))
	for i, app := range feed.Feed.Results {
		entries = append(entries, core.Entry{
			Title:     fmt.Sprintf("Top %d: %s", i+1, app.Name),
			URL:       app.URL,
			Published: published,
			Creator:   app.ArtistName,
			Img:       app.ArtworkURL,
			StoreLink: app.URL,
		})
	}
	return entries, nil
}
