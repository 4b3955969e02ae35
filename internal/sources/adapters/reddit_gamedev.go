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
	redditGamedevSource   = "reddit_gamedev"
	redditGamedevCategory = "game"
	redditGamedevAPI      = "https://www.reddit.com/r/gamedev/hot.json?limit=25"
)

type redditGamedevAdapter struct {
	sources.DefaultDetail
	apiURL string
}

func init() {
	sources.Register(&redditGamedevAdapter{apiURL: redditGamedevAPI})
}

func (a *redditGamedevAdapter) Source() string   { return redditGamedevSource }
func (a *redditGamedevAdapter) Category() string { return redditGamedevCategory }

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title      string  `json:"title"`
				Permalink  string  `json:"permalink"`
				URL        string  `json:"url"`
				Author     string  `json:"author"`
				CreatedUTC float64 `json:"created_utc"`
				Stickied   bool    `json:"stickied"`
				Selftext   string  `json:"selftext"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (a *redditGamedevAdapter) Collect(ctx context.Context) ([]core.Entry, error) {
	body, err := sources.FetchURL(ctx, a.apiURL)
	if err != nil {
		return nil, err
	}
	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	var entries []core.Entry
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied {
			continue
		}
		entries = append(entries, core.Entry{
			Title:     post.Title,
			URL:       "https://www.reddit.com" + post.Permalink,
			Published: time.Unix(int64(post.CreatedUTC), 0).UTC().Format(timeutil.Canonical),
			Creator:   post.Author,
			Detail:    post.Selftext,
		})
	}
	return entries, nil
}
