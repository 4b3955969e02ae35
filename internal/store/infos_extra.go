package store

import (
	"fmt"

	"newsflow/internal/core"
)

// ListInfos returns articles matching the filter regardless of review state,
// newest first. Used by re-evaluation with overwrite.
func (s *Store) ListInfos(f CandidateFilter) ([]core.Info, error) {
	query := `SELECT ` + prefixColumns("i.") + ` FROM infos i WHERE 1=1`
	var args []any

	query, args = appendCandidateFilter(query, args, f)
	query += ` ORDER BY i.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list infos: %w", err)
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
