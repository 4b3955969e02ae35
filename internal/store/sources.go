package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"newsflow/internal/core"
)

// UpsertCategory inserts or updates a category by key.
func (s *Store) UpsertCategory(c core.Category) error {
	_, err := s.db.Exec(
		`INSERT INTO categories (key, label, enabled) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET label = excluded.label, enabled = excluded.enabled`,
		c.Key, c.Label, c.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert category %s: %w", c.Key, err)
	}
	return nil
}

// ListCategories returns all categories ordered by key.
func (s *Store) ListCategories() ([]core.Category, error) {
	rows, err := s.db.Query(`SELECT key, label, enabled FROM categories ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.Key, &c.Label, &c.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpsertSource inserts or updates a source by key and returns its id.
func (s *Store) UpsertSource(src core.Source) (int64, error) {
	addresses, _ := json.Marshal(src.Addresses)
	_, err := s.db.Exec(
		`INSERT INTO sources (key, label, category_key, script_path, enabled, addresses)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			label = excluded.label,
			category_key = excluded.category_key,
			script_path = excluded.script_path,
			enabled = excluded.enabled,
			addresses = excluded.addresses`,
		src.Key, src.Label, src.CategoryKey, src.ScriptPath, src.Enabled, string(addresses),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert source %s: %w", src.Key, err)
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM sources WHERE key = ?`, src.Key).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read source id for %s: %w", src.Key, err)
	}
	return id, nil
}

// GetSourceByKey returns the source with the given key, or nil when absent.
func (s *Store) GetSourceByKey(key string) (*core.Source, error) {
	row := s.db.QueryRow(
		`SELECT id, key, label, category_key, script_path, enabled, addresses
		 FROM sources WHERE key = ?`, key)
	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan source %s: %w", key, err)
	}
	return src, nil
}

// ListSources returns sources ordered by key. When enabledOnly is set,
// disabled sources and sources in disabled categories are skipped.
func (s *Store) ListSources(enabledOnly bool) ([]core.Source, error) {
	query := `SELECT s.id, s.key, s.label, s.category_key, s.script_path, s.enabled, s.addresses
		 FROM sources s ORDER BY s.key`
	if enabledOnly {
		query = `SELECT s.id, s.key, s.label, s.category_key, s.script_path, s.enabled, s.addresses
		 FROM sources s
		 LEFT JOIN categories c ON c.key = s.category_key
		 WHERE s.enabled = 1 AND (c.key IS NULL OR c.enabled = 1)
		 ORDER BY s.key`
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []core.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*core.Source, error) {
	var src core.Source
	var addresses sql.NullString
	err := row.Scan(&src.ID, &src.Key, &src.Label, &src.CategoryKey, &src.ScriptPath, &src.Enabled, &addresses)
	if err != nil {
		return nil, err
	}
	if addresses.Valid && addresses.String != "" {
		json.Unmarshal([]byte(addresses.String), &src.Addresses)
	}
	if src.ScriptPath == "" {
		src.ScriptPath = src.Key
	}
	return &src, nil
}

// TouchSourceRun records a successful collection for a source.
func (s *Store) TouchSourceRun(sourceID int64, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO source_runs (source_id, last_run_at) VALUES (?, ?)`,
		sourceID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record source run: %w", err)
	}
	return nil
}

// GetSourceRun returns the last successful collection time for a source, or
// nil when it has never run.
func (s *Store) GetSourceRun(sourceID int64) (*core.SourceRun, error) {
	var run core.SourceRun
	run.SourceID = sourceID
	err := s.db.QueryRow(
		`SELECT last_run_at FROM source_runs WHERE source_id = ?`, sourceID,
	).Scan(&run.LastRunAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read source run: %w", err)
	}
	run.LastRunAt = run.LastRunAt.UTC()
	return &run, nil
}
