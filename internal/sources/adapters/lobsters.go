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
	lobstersSource   = "lobsters"
	lobstersCategory = "tech"
	lobstersListURL  = "https://lobste.rs/hottest.json"
)

type lobstersAdapter struct {
	sources.DefaultDetail
	listURL string
}

func init() {
	sources.Register(&lobstersAdapter{listURL: lobstersListURL})
}

func (a *lobstersAdapter) Source() string   { return lobstersSource }
func (a *lobstersAdapter) Category() string { return lobstersCategory }

func (a *lobstersAdapter) FetchList(ctx context.Context) ([]byte, error) {
	return sources.FetchURL(ctx, a.listURL)
}

type lobstersStory struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	CommentsURL   string `json:"comments_url"`
	CreatedAt     string `json:"created_at"`
	SubmitterUser string `json:"submitter_user"`
}

func (a *lobstersAdapter) ParseList(body []byte) ([]core.Entry, error) {
	var stories []lobstersStory
	if err := json.Unmarshal(body, &stories); err != nil {
		return nil, fmt.Errorf("failed to decode story list: %w", err)
	}

	entries := make([]core.Entry, 0, len(stories))
	for _, story := range stories {
		url := story.URL
		if url == "" {
			url = story.CommentsURL
		}
		entries = append(entries, core.Entry{
			Title:     story.Title,
			URL:       url,
			Published: timeutil.Normalize(story.CreatedAt),
			Creator:   story.SubmitterUser,
		})
	}
	return entries, nil
}
