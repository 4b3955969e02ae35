// Package composer selects, ranks and renders digest content from stored
// articles and their AI reviews.
package composer

import (
	"sort"
	"time"

	"newsflow/internal/core"
	"newsflow/internal/scoring"
	"newsflow/internal/store"
)

// Item is one selected article with its effective score.
type Item struct {
	Info   core.Info
	Review core.InfoAiReview
	Scores map[string]int // Metric key -> stored score
	Score  float64        // Weighted score plus source bonus, clamped
	Bonus  float64        // Applied source bonus, for display
}

// Section is one category block of the digest.
type Section struct {
	Category string
	Items    []Item
}

// Digest is the ranked, capped selection ready for a writer.
type Digest struct {
	Sections    []Section
	GeneratedAt time.Time
	Total       int
}

// Config is the resolved composition configuration for one run.
type Config struct {
	EvaluatorKey     string
	Hours            int                // Candidate window, default 24
	Categories       []string           // Empty means all
	Sources          []string           // Empty means all
	CategoryExempt   []string           // Sources admitted regardless of category
	Weights          map[string]float64 // Resolved metric weights
	SourceBonus      map[string]float64 // Source key -> signed bonus
	LimitPerCategory map[string]int     // Category key or "default" -> cap
	PerSourceCap     int
	MinScore         float64
}

const defaultCategoryLimit = 10

// ResolveWeights applies the weight chain: metric defaults, then writer
// overrides, then a CLI override.
func ResolveWeights(metrics []core.AiMetric, writer map[string]float64, cli map[string]float64) map[string]float64 {
	weights := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		weights[m.Key] = m.DefaultWeight
	}
	for key, w := range writer {
		weights[key] = w
	}
	for key, w := range cli {
		weights[key] = w
	}
	return weights
}

// Compose runs selection and ranking. The returned digest may be empty; the
// caller decides whether an empty digest is still delivered.
func Compose(s *store.Store, cfg Config, now time.Time) (*Digest, error) {
	hours := cfg.Hours
	if hours <= 0 {
		hours = 24
	}

	candidates, err := s.ListReviewedInfos(cfg.EvaluatorKey, store.CandidateFilter{
		Since:          now.Add(-time.Duration(hours) * time.Hour),
		Categories:     cfg.Categories,
		Sources:        cfg.Sources,
		CategoryExempt: cfg.CategoryExempt,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	byCategory := make(map[string][]Item)
	for _, ri := range candidates {
		if ri.Info.Title == "" || ri.Info.Link == "" {
			continue
		}
		if seen[ri.Info.Link] {
			continue
		}
		seen[ri.Info.Link] = true

		score := scoring.WeightedMean(ri.Scores, cfg.Weights)
		bonus := cfg.SourceBonus[ri.Info.Source]
		if bonus != 0 {
			score = scoring.Clamp(score + bonus)
		}
		if cfg.MinScore > 0 && score < cfg.MinScore {
			continue
		}

		byCategory[ri.Info.Category] = append(byCategory[ri.Info.Category], Item{
			Info:   ri.Info,
			Review: ri.Review,
			Scores: ri.Scores,
			Score:  score,
			Bonus:  bonus,
		})
	}

	digest := &Digest{GeneratedAt: now}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, category := range categories {
		items := byCategory[category]
		sortItems(items)

		if cfg.PerSourceCap > 0 {
			items = applySourceCap(items, cfg.PerSourceCap)
			sortItems(items)
		}

		if limit := categoryLimit(cfg.LimitPerCategory, category); limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		if len(items) == 0 {
			continue
		}

		digest.Sections = append(digest.Sections, Section{Category: category, Items: items})
		digest.Total += len(items)
	}

	return digest, nil
}

// sortItems orders by score descending, then publish descending. Canonical
// publish strings sort correctly as text.
func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Info.Publish > items[j].Info.Publish
	})
}

// applySourceCap keeps the top cap items per source. Input must already be
// sorted by rank.
func applySourceCap(items []Item, cap int) []Item {
	counts := make(map[string]int)
	kept := items[:0]
	for _, item := range items {
		if counts[item.Info.Source] >= cap {
			continue
		}
		counts[item.Info.Source]++
		kept = append(kept, item)
	}
	return kept
}

// categoryLimit resolves the per-category cap: explicit entry, then the
// "default" entry, then 10. A limit <= 0 means no cap.
func categoryLimit(limits map[string]int, category string) int {
	if limits != nil {
		if limit, ok := limits[category]; ok {
			return limit
		}
		if limit, ok := limits["default"]; ok {
			return limit
		}
	}
	return defaultCategoryLimit
}
