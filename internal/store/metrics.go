package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"newsflow/internal/core"
)

// UpsertMetric inserts or updates a metric by key and returns its id.
func (s *Store) UpsertMetric(m core.AiMetric) (int64, error) {
	_, err := s.db.Exec(
		`INSERT INTO ai_metrics (key, label, rate_guide, default_weight, active, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			label = excluded.label,
			rate_guide = excluded.rate_guide,
			default_weight = excluded.default_weight,
			active = excluded.active,
			sort_order = excluded.sort_order`,
		m.Key, m.Label, m.RateGuide, m.DefaultWeight, m.Active, m.SortOrder,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert metric %s: %w", m.Key, err)
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM ai_metrics WHERE key = ?`, m.Key).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read metric id for %s: %w", m.Key, err)
	}
	return id, nil
}

// ListActiveMetrics returns active metrics ordered by sort_order.
func (s *Store) ListActiveMetrics() ([]core.AiMetric, error) {
	rows, err := s.db.Query(
		`SELECT id, key, label, rate_guide, default_weight, active, sort_order
		 FROM ai_metrics WHERE active = 1 ORDER BY sort_order, key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	defer rows.Close()

	var metrics []core.AiMetric
	for rows.Next() {
		var m core.AiMetric
		if err := rows.Scan(&m.ID, &m.Key, &m.Label, &m.RateGuide, &m.DefaultWeight, &m.Active, &m.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// ListAllMetrics returns every metric, active or not, ordered by sort_order.
func (s *Store) ListAllMetrics() ([]core.AiMetric, error) {
	rows, err := s.db.Query(
		`SELECT id, key, label, rate_guide, default_weight, active, sort_order
		 FROM ai_metrics ORDER BY sort_order, key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	defer rows.Close()

	var metrics []core.AiMetric
	for rows.Next() {
		var m core.AiMetric
		if err := rows.Scan(&m.ID, &m.Key, &m.Label, &m.RateGuide, &m.DefaultWeight, &m.Active, &m.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func (s *Store) countActiveMetrics() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ai_metrics WHERE active = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count metrics: %w", err)
	}
	return n, nil
}

// GetScores returns the stored per-metric scores for an article, keyed by
// metric key.
func (s *Store) GetScores(infoID int64) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT m.key, sc.score FROM info_ai_scores sc
		 JOIN ai_metrics m ON m.id = sc.metric_id
		 WHERE sc.info_id = ?`, infoID)
	if err != nil {
		return nil, fmt.Errorf("failed to read scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]int)
	for rows.Next() {
		var key string
		var score int
		if err := rows.Scan(&key, &score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores[key] = score
	}
	return scores, rows.Err()
}

// SaveEvaluation upserts the per-metric scores and the review row for one
// article in a single transaction, so a crash mid-run never leaves an article
// half-evaluated.
func (s *Store) SaveEvaluation(scores []core.InfoAiScore, review core.InfoAiReview) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, sc := range scores {
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO info_ai_scores (info_id, metric_id, score) VALUES (?, ?, ?)`,
			sc.InfoID, sc.MetricID, sc.Score,
		)
		if err != nil {
			return fmt.Errorf("failed to save score: %w", err)
		}
	}

	concepts, _ := json.Marshal(review.AiKeyConcepts)
	_, err = tx.Exec(
		`INSERT OR REPLACE INTO info_ai_reviews
		 (info_id, evaluator_key, final_score, ai_comment, ai_summary, ai_summary_long, ai_key_concepts, raw_response, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		review.InfoID, review.EvaluatorKey, review.FinalScore, review.AiComment,
		review.AiSummary, review.AiSummaryLong, string(concepts), review.RawResponse,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}

	return tx.Commit()
}

// GetReview returns the review for (article, evaluator), or nil when absent.
func (s *Store) GetReview(infoID int64, evaluatorKey string) (*core.InfoAiReview, error) {
	var r core.InfoAiReview
	var concepts string
	err := s.db.QueryRow(
		`SELECT info_id, evaluator_key, final_score, ai_comment, ai_summary, ai_summary_long, ai_key_concepts, raw_response
		 FROM info_ai_reviews WHERE info_id = ? AND evaluator_key = ?`,
		infoID, evaluatorKey,
	).Scan(&r.InfoID, &r.EvaluatorKey, &r.FinalScore, &r.AiComment, &r.AiSummary, &r.AiSummaryLong, &concepts, &r.RawResponse)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read review: %w", err)
	}
	r.AiKeyConcepts = decodeStringList(concepts)
	return &r, nil
}

func decodeStringList(raw string) []string {
	if raw == "" || raw == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}
