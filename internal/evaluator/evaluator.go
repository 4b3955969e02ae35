// Package evaluator scores stored articles with an LLM along the configured
// metric dimensions.
package evaluator

import (
	"context"
	"fmt"
	"time"

	"newsflow/internal/core"
	"newsflow/internal/logger"
	"newsflow/internal/scoring"
	"newsflow/internal/store"
)

// ChatClient is the LLM surface the evaluator needs.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Options selects and bounds one evaluation batch.
type Options struct {
	EvaluatorKey   string
	Hours          int // <= 0 means unbounded window
	Categories     []string
	Sources        []string
	CategoryExempt []string // Sources admitted regardless of category
	Limit          int
	Overwrite      bool               // Re-evaluate rows that already have a review
	Weights        map[string]float64 // Metric weight overrides for the final score
	MaxRetries     int                // Default 3
}

// Result summarizes one evaluation batch.
type Result struct {
	Candidates int
	Evaluated  int
	Failed     int
}

// Evaluator runs the score-and-review loop.
type Evaluator struct {
	store  *store.Store
	client ChatClient
	prompt Prompt
	sleep  func(time.Duration)
	now    func() time.Time
}

func New(s *store.Store, client ChatClient, prompt Prompt) *Evaluator {
	return &Evaluator{
		store:  s,
		client: client,
		prompt: prompt,
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// SetSleeper and SetClock override timing for tests.
func (e *Evaluator) SetSleeper(sleep func(time.Duration)) { e.sleep = sleep }
func (e *Evaluator) SetClock(now func() time.Time)        { e.now = now }

// Run evaluates every candidate article. Per-article failures are logged and
// skipped; the batch always proceeds.
func (e *Evaluator) Run(ctx context.Context, opts Options) (Result, error) {
	var result Result
	if opts.EvaluatorKey == "" {
		return result, fmt.Errorf("evaluator key is required")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	metrics, err := e.store.ListActiveMetrics()
	if err != nil {
		return result, err
	}
	if len(metrics) == 0 {
		return result, fmt.Errorf("no active metrics configured")
	}

	activeKeys := make([]string, 0, len(metrics))
	metricIDs := make(map[string]int64, len(metrics))
	weights := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		activeKeys = append(activeKeys, m.Key)
		metricIDs[m.Key] = m.ID
		weights[m.Key] = m.DefaultWeight
	}
	for key, w := range opts.Weights {
		weights[key] = w
	}

	filter := store.CandidateFilter{
		Categories:     opts.Categories,
		Sources:        opts.Sources,
		CategoryExempt: opts.CategoryExempt,
		Limit:          opts.Limit,
	}
	if opts.Hours > 0 {
		filter.Since = e.now().Add(-time.Duration(opts.Hours) * time.Hour)
	}

	var candidates []core.Info
	if opts.Overwrite {
		candidates, err = e.store.ListInfos(filter)
	} else {
		candidates, err = e.store.ListUnreviewedInfos(opts.EvaluatorKey, filter)
	}
	if err != nil {
		return result, err
	}
	result.Candidates = len(candidates)

	expanded := e.prompt.Expand(metrics)

	for _, info := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		review, raw, err := e.evaluateOne(ctx, expanded, info, activeKeys, opts.MaxRetries)
		if err != nil {
			logger.Error("article evaluation failed", err, "info_id", info.ID, "title", info.Title)
			result.Failed++
			continue
		}

		scoreRows := make([]core.InfoAiScore, 0, len(review.Scores))
		for key, score := range review.Scores {
			scoreRows = append(scoreRows, core.InfoAiScore{
				InfoID:   info.ID,
				MetricID: metricIDs[key],
				Score:    scoring.ClampInt(score),
			})
		}

		final := scoring.WeightedMean(review.Scores, weights)
		err = e.store.SaveEvaluation(scoreRows, core.InfoAiReview{
			InfoID:        info.ID,
			EvaluatorKey:  opts.EvaluatorKey,
			FinalScore:    final,
			AiComment:     review.Comment,
			AiSummary:     review.Summary,
			AiSummaryLong: review.SummaryLong,
			AiKeyConcepts: review.KeyConcepts,
			RawResponse:   raw,
		})
		if err != nil {
			logger.Error("failed to persist evaluation", err, "info_id", info.ID)
			result.Failed++
			continue
		}
		result.Evaluated++
	}

	return result, nil
}

// evaluateOne calls the LLM with retries and validates the response. The
// backoff grows exponentially and is capped at 10 seconds.
func (e *Evaluator) evaluateOne(ctx context.Context, prompt Prompt, info core.Info, activeKeys []string, maxRetries int) (*Review, string, error) {
	user := prompt.ForArticle(info)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			e.sleep(backoff(attempt - 1))
		}

		raw, err := e.client.Complete(ctx, prompt.System, user)
		if err != nil {
			lastErr = err
			continue
		}

		review, err := ValidateResponse(raw, activeKeys)
		if err != nil {
			lastErr = fmt.Errorf("invalid response: %w", err)
			continue
		}
		return review, raw, nil
	}
	return nil, "", fmt.Errorf("gave up after %d attempts: %w", maxRetries, lastErr)
}

func backoff(n int) time.Duration {
	seconds := 1 << (n - 1)
	if seconds > 10 {
		seconds = 10
	}
	return time.Duration(seconds) * time.Second
}
