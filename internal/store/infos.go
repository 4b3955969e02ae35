package store

import (
	"database/sql"
	"fmt"
	"time"

	"newsflow/internal/core"
)

// InsertInfoIfAbsent inserts the article unless a row with the same link
// already exists. Returns the row id and whether a new row was created.
// Existing rows are never modified here.
func (s *Store) InsertInfoIfAbsent(info core.Info) (int64, bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO infos
		 (source, category, publish, title, detail, link, store_link, creator, img_link, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.Source, info.Category, info.Publish, info.Title, info.Detail,
		info.Link, info.StoreLink, info.Creator, info.ImgLink, time.Now().UTC(),
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert info: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("failed to read insert id: %w", err)
		}
		return id, true, nil
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM infos WHERE link = ?`, info.Link).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("failed to read existing info id: %w", err)
	}
	return id, false, nil
}

// UpdateInfoDetail back-fills the plain-text body of an article.
func (s *Store) UpdateInfoDetail(id int64, detail string) error {
	_, err := s.db.Exec(`UPDATE infos SET detail = ? WHERE id = ?`, detail, id)
	if err != nil {
		return fmt.Errorf("failed to update info detail: %w", err)
	}
	return nil
}

const infoColumns = `id, source, category, publish, title, detail, link, store_link, creator, img_link`

func scanInfo(row rowScanner) (core.Info, error) {
	var info core.Info
	err := row.Scan(&info.ID, &info.Source, &info.Category, &info.Publish, &info.Title,
		&info.Detail, &info.Link, &info.StoreLink, &info.Creator, &info.ImgLink)
	return info, err
}

// GetInfoByLink returns the article with the given link, or nil when absent.
func (s *Store) GetInfoByLink(link string) (*core.Info, error) {
	row := s.db.QueryRow(`SELECT `+infoColumns+` FROM infos WHERE link = ?`, link)
	info, err := scanInfo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan info: %w", err)
	}
	return &info, nil
}

// GetInfoByID returns the article with the given id, or nil when absent.
func (s *Store) GetInfoByID(id int64) (*core.Info, error) {
	row := s.db.QueryRow(`SELECT `+infoColumns+` FROM infos WHERE id = ?`, id)
	info, err := scanInfo(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan info: %w", err)
	}
	return &info, nil
}

// ListDetailBackfillCandidates returns recent rows of a source with an empty
// detail, newest first. Only the newest scanWindow rows are considered.
func (s *Store) ListDetailBackfillCandidates(sourceKey string, scanWindow, limit int) ([]core.Info, error) {
	rows, err := s.db.Query(
		`SELECT `+infoColumns+` FROM (
			SELECT `+infoColumns+`, created_at FROM infos
			WHERE source = ? ORDER BY id DESC LIMIT ?
		 ) WHERE detail = '' ORDER BY id DESC LIMIT ?`,
		sourceKey, scanWindow, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list backfill candidates: %w", err)
	}
	defer rows.Close()

	var infos []core.Info
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// CandidateFilter narrows evaluation and composition candidate queries.
type CandidateFilter struct {
	Since      time.Time // Zero means unbounded
	Categories []string  // Empty means all
	Sources    []string  // Empty means all
	// CategoryExempt lists allow-listed sources whose articles pass the
	// category restriction regardless of their own category.
	CategoryExempt []string
	Limit          int // <= 0 means unbounded
}

// ListUnreviewedInfos returns articles that have no review row for the given
// evaluator, newest first. Rows with an unparseable publish fall back to
// their insertion time for the window check.
func (s *Store) ListUnreviewedInfos(evaluatorKey string, f CandidateFilter) ([]core.Info, error) {
	query := `SELECT ` + prefixColumns("i.") + ` FROM infos i
		 WHERE NOT EXISTS (
			SELECT 1 FROM info_ai_reviews r
			WHERE r.info_id = i.id AND r.evaluator_key = ?
		 )`
	args := []any{evaluatorKey}

	query, args = appendCandidateFilter(query, args, f)
	query += ` ORDER BY i.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unreviewed infos: %w", err)
	}
	defer rows.Close()

	var infos []core.Info
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// ReviewedInfo pairs an article with its review and per-metric scores
// (keyed by metric key).
type ReviewedInfo struct {
	Info   core.Info
	Review core.InfoAiReview
	Scores map[string]int
}

// ListReviewedInfos returns articles that carry a review for the evaluator
// together with their per-metric scores. Articles missing scores for any
// active metric are excluded.
func (s *Store) ListReviewedInfos(evaluatorKey string, f CandidateFilter) ([]ReviewedInfo, error) {
	query := `SELECT ` + prefixColumns("i.") + `,
			r.final_score, r.ai_comment, r.ai_summary, r.ai_summary_long, r.ai_key_concepts, r.raw_response
		 FROM infos i
		 JOIN info_ai_reviews r ON r.info_id = i.id AND r.evaluator_key = ?`
	args := []any{evaluatorKey}

	query, args = appendCandidateFilter(query, args, f)
	query += ` ORDER BY i.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewed infos: %w", err)
	}
	defer rows.Close()

	var out []ReviewedInfo
	for rows.Next() {
		var ri ReviewedInfo
		var concepts sql.NullString
		err := rows.Scan(&ri.Info.ID, &ri.Info.Source, &ri.Info.Category, &ri.Info.Publish,
			&ri.Info.Title, &ri.Info.Detail, &ri.Info.Link, &ri.Info.StoreLink,
			&ri.Info.Creator, &ri.Info.ImgLink,
			&ri.Review.FinalScore, &ri.Review.AiComment, &ri.Review.AiSummary,
			&ri.Review.AiSummaryLong, &concepts, &ri.Review.RawResponse)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reviewed info: %w", err)
		}
		ri.Review.InfoID = ri.Info.ID
		ri.Review.EvaluatorKey = evaluatorKey
		if concepts.Valid {
			ri.Review.AiKeyConcepts = decodeStringList(concepts.String)
		}
		out = append(out, ri)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	activeMetrics, err := s.countActiveMetrics()
	if err != nil {
		return nil, err
	}

	complete := out[:0]
	for _, ri := range out {
		scores, err := s.GetScores(ri.Info.ID)
		if err != nil {
			return nil, err
		}
		if len(scores) < activeMetrics {
			continue
		}
		ri.Scores = scores
		complete = append(complete, ri)
	}
	return complete, nil
}

func prefixColumns(prefix string) string {
	return prefix + `id, ` + prefix + `source, ` + prefix + `category, ` + prefix + `publish, ` +
		prefix + `title, ` + prefix + `detail, ` + prefix + `link, ` + prefix + `store_link, ` +
		prefix + `creator, ` + prefix + `img_link`
}

func appendCandidateFilter(query string, args []any, f CandidateFilter) (string, []any) {
	if !f.Since.IsZero() {
		cutoff := f.Since.UTC().Format(time.RFC3339)
		query += ` AND ((i.publish != '' AND i.publish >= ?) OR (i.publish = '' AND i.created_at >= ?))`
		args = append(args, cutoff, f.Since.UTC())
	}
	if len(f.Categories) > 0 {
		clause := `i.category IN (` + placeholders(len(f.Categories)) + `)`
		for _, c := range f.Categories {
			args = append(args, c)
		}
		if len(f.CategoryExempt) > 0 {
			clause = `(` + clause + ` OR i.source IN (` + placeholders(len(f.CategoryExempt)) + `))`
			for _, src := range f.CategoryExempt {
				args = append(args, src)
			}
		}
		query += ` AND ` + clause
	}
	if len(f.Sources) > 0 {
		query += ` AND i.source IN (` + placeholders(len(f.Sources)) + `)`
		for _, src := range f.Sources {
			args = append(args, src)
		}
	}
	return query, args
}
