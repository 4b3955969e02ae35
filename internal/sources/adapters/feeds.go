// Package adapters holds the built-in source adapters. Each adapter
// registers itself under its source key; importing this package for side
// effects makes the full registry available.
package adapters

import "newsflow/internal/sources"

// Plain RSS/Atom sources need nothing beyond the shared feed adapter.
func init() {
	for _, f := range []sources.FeedAdapter{
		{SourceKey: "openai_research", CategoryKey: "ai", FeedURL: "https://openai.com/news/rss.xml", MaxItems: 30},
		{SourceKey: "deepmind_blog", CategoryKey: "ai", FeedURL: "https://deepmind.google/blog/rss.xml", MaxItems: 30},
		{SourceKey: "arxiv_cs_ai", CategoryKey: "ai", FeedURL: "https://export.arxiv.org/api/query?search_query=cat:cs.AI&sortBy=submittedDate&sortOrder=descending&max_results=30"},
		{SourceKey: "youtube_ai", CategoryKey: "ai", FeedURL: "https://www.youtube.com/feeds/videos.xml?channel_id=UCbfYPyITQ-7l4upoX8nvctg", MaxItems: 15},
		{SourceKey: "arstechnica", CategoryKey: "tech", FeedURL: "https://feeds.arstechnica.com/arstechnica/index", MaxItems: 40},
		{SourceKey: "theverge", CategoryKey: "tech", FeedURL: "https://www.theverge.com/rss/index.xml", MaxItems: 40},
		{SourceKey: "techcrunch", CategoryKey: "tech", FeedURL: "https://techcrunch.com/feed/", MaxItems: 40},
		{SourceKey: "producthunt", CategoryKey: "tech", FeedURL: "https://www.producthunt.com/feed", MaxItems: 30},
		{SourceKey: "gamedeveloper", CategoryKey: "game", FeedURL: "https://www.gamedeveloper.com/rss.xml", MaxItems: 40},
		{SourceKey: "itchio_devlogs", CategoryKey: "game", FeedURL: "https://itch.io/feed/new.xml", MaxItems: 30},
		{SourceKey: "youtube_gamedev", CategoryKey: "game", FeedURL: "https://www.youtube.com/feeds/videos.xml?channel_id=UC9Z1XWw1kmnvOOFsj6Bzy2g", MaxItems: 15},
	} {
		sources.Register(f)
	}
}
