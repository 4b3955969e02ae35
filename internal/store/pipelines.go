package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"newsflow/internal/core"
)

// UpsertPipelineClass inserts or updates a class by key and returns its id.
func (s *Store) UpsertPipelineClass(c core.PipelineClass) (int64, error) {
	categories, _ := json.Marshal(c.Categories)
	evaluators, _ := json.Marshal(c.Evaluators)
	writers, _ := json.Marshal(c.Writers)
	_, err := s.db.Exec(
		`INSERT INTO pipeline_classes (key, categories, evaluators, writers)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			categories = excluded.categories,
			evaluators = excluded.evaluators,
			writers = excluded.writers`,
		c.Key, string(categories), string(evaluators), string(writers),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert pipeline class %s: %w", c.Key, err)
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM pipeline_classes WHERE key = ?`, c.Key).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read class id for %s: %w", c.Key, err)
	}
	return id, nil
}

// GetPipelineClass returns the class with the given id, or nil when absent.
func (s *Store) GetPipelineClass(id int64) (*core.PipelineClass, error) {
	var c core.PipelineClass
	var categories, evaluators, writers string
	err := s.db.QueryRow(
		`SELECT id, key, categories, evaluators, writers FROM pipeline_classes WHERE id = ?`, id,
	).Scan(&c.ID, &c.Key, &categories, &evaluators, &writers)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline class: %w", err)
	}
	c.Categories = decodeStringList(categories)
	c.Evaluators = decodeStringList(evaluators)
	c.Writers = decodeStringList(writers)
	return &c, nil
}

// SavePipeline inserts or updates a pipeline by name and returns its id.
// Weekdays round-trip as JSON so the absent/empty distinction survives:
// NULL means unrestricted, [] means never.
func (s *Store) SavePipeline(p core.Pipeline) (int64, error) {
	var weekdays any
	if p.Weekdays != nil {
		raw, _ := json.Marshal(*p.Weekdays)
		weekdays = string(raw)
	}
	_, err := s.db.Exec(
		`INSERT INTO pipelines (name, enabled, debug_enabled, evaluator_key, pipeline_class_id, weekdays, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			enabled = excluded.enabled,
			debug_enabled = excluded.debug_enabled,
			evaluator_key = excluded.evaluator_key,
			pipeline_class_id = excluded.pipeline_class_id,
			weekdays = excluded.weekdays,
			description = excluded.description`,
		p.Name, p.Enabled, p.DebugEnabled, p.EvaluatorKey, p.ClassID, weekdays, p.Description,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save pipeline %s: %w", p.Name, err)
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM pipelines WHERE name = ?`, p.Name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read pipeline id for %s: %w", p.Name, err)
	}
	return id, nil
}

const pipelineColumns = `id, name, enabled, debug_enabled, evaluator_key, pipeline_class_id, weekdays, description`

func scanPipeline(row rowScanner) (core.Pipeline, error) {
	var p core.Pipeline
	var weekdays sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Enabled, &p.DebugEnabled, &p.EvaluatorKey, &p.ClassID, &weekdays, &p.Description)
	if err != nil {
		return p, err
	}
	if weekdays.Valid && weekdays.String != "null" {
		days := []int{}
		if err := json.Unmarshal([]byte(weekdays.String), &days); err == nil {
			p.Weekdays = &days
		}
	}
	return p, nil
}

// GetPipelineByID returns the pipeline with the given id, or nil when absent.
func (s *Store) GetPipelineByID(id int64) (*core.Pipeline, error) {
	row := s.db.QueryRow(`SELECT `+pipelineColumns+` FROM pipelines WHERE id = ?`, id)
	p, err := scanPipeline(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pipeline: %w", err)
	}
	return &p, nil
}

// GetPipelineByName returns the pipeline with the given name, or nil when
// absent.
func (s *Store) GetPipelineByName(name string) (*core.Pipeline, error) {
	row := s.db.QueryRow(`SELECT `+pipelineColumns+` FROM pipelines WHERE name = ?`, name)
	p, err := scanPipeline(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pipeline: %w", err)
	}
	return &p, nil
}

// ListPipelines returns pipelines ordered by id. When enabledOnly is set,
// disabled pipelines are skipped.
func (s *Store) ListPipelines(enabledOnly bool) ([]core.Pipeline, error) {
	query := `SELECT ` + pipelineColumns + ` FROM pipelines ORDER BY id`
	if enabledOnly {
		query = `SELECT ` + pipelineColumns + ` FROM pipelines WHERE enabled = 1 ORDER BY id`
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []core.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, rows.Err()
}

// SavePipelineFilters rewrites the filter row for a pipeline.
func (s *Store) SavePipelineFilters(f core.PipelineFilters) error {
	categories, _ := json.Marshal(f.Categories)
	include, _ := json.Marshal(f.IncludeSources)
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO pipeline_filters (pipeline_id, all_categories, categories, all_src, include_src)
		 VALUES (?, ?, ?, ?, ?)`,
		f.PipelineID, f.AllCategories, string(categories), f.AllSources, string(include),
	)
	if err != nil {
		return fmt.Errorf("failed to save pipeline filters: %w", err)
	}
	return nil
}

// GetPipelineFilters returns the filter row for a pipeline, or nil when the
// pipeline has no filters configured.
func (s *Store) GetPipelineFilters(pipelineID int64) (*core.PipelineFilters, error) {
	var f core.PipelineFilters
	var categories, include string
	err := s.db.QueryRow(
		`SELECT pipeline_id, all_categories, categories, all_src, include_src
		 FROM pipeline_filters WHERE pipeline_id = ?`, pipelineID,
	).Scan(&f.PipelineID, &f.AllCategories, &categories, &f.AllSources, &include)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline filters: %w", err)
	}
	f.Categories = decodeStringList(categories)
	f.IncludeSources = decodeStringList(include)
	return &f, nil
}

// SavePipelineWriter rewrites the writer row for a pipeline.
func (s *Store) SavePipelineWriter(w core.PipelineWriter) error {
	weights, _ := json.Marshal(w.Weights)
	bonus, _ := json.Marshal(w.SourceBonus)
	limits, _ := json.Marshal(w.LimitPerCategory)
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO pipeline_writers
		 (pipeline_id, type, hours, weights, source_bonus, limit_per_category, per_source_cap, min_score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.PipelineID, w.Type, w.Hours, string(weights), string(bonus), string(limits), w.PerSourceCap, w.MinScore,
	)
	if err != nil {
		return fmt.Errorf("failed to save pipeline writer: %w", err)
	}
	return nil
}

// GetPipelineWriter returns the writer row for a pipeline, or nil when the
// pipeline has no writer configured.
func (s *Store) GetPipelineWriter(pipelineID int64) (*core.PipelineWriter, error) {
	var w core.PipelineWriter
	var weights, bonus, limits string
	err := s.db.QueryRow(
		`SELECT pipeline_id, type, hours, weights, source_bonus, limit_per_category, per_source_cap, min_score
		 FROM pipeline_writers WHERE pipeline_id = ?`, pipelineID,
	).Scan(&w.PipelineID, &w.Type, &w.Hours, &weights, &bonus, &limits, &w.PerSourceCap, &w.MinScore)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline writer: %w", err)
	}
	json.Unmarshal([]byte(weights), &w.Weights)
	json.Unmarshal([]byte(bonus), &w.SourceBonus)
	json.Unmarshal([]byte(limits), &w.LimitPerCategory)
	return &w, nil
}

// SaveDelivery rewrites the delivery target for a pipeline. Exactly one arm
// must be set.
func (s *Store) SaveDelivery(pipelineID int64, d core.Delivery) error {
	if !d.Valid() {
		return fmt.Errorf("pipeline %d: exactly one delivery transport must be configured", pipelineID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM email_deliveries WHERE pipeline_id = ?`, pipelineID); err != nil {
		return fmt.Errorf("failed to clear email delivery: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chat_deliveries WHERE pipeline_id = ?`, pipelineID); err != nil {
		return fmt.Errorf("failed to clear chat delivery: %w", err)
	}

	if d.Email != nil {
		_, err = tx.Exec(
			`INSERT INTO email_deliveries (pipeline_id, email, subject_tpl) VALUES (?, ?, ?)`,
			pipelineID, d.Email.Email, d.Email.SubjectTpl,
		)
	} else {
		_, err = tx.Exec(
			`INSERT INTO chat_deliveries (pipeline_id, app_id, app_secret, to_all_chat, chat_id, title_tpl)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			pipelineID, d.Chat.AppID, d.Chat.AppSecret, d.Chat.ToAllChat, d.Chat.ChatID, d.Chat.TitleTpl,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to save delivery: %w", err)
	}

	return tx.Commit()
}

// GetDelivery returns the delivery target for a pipeline. Both arms nil means
// the pipeline has no delivery configured.
func (s *Store) GetDelivery(pipelineID int64) (core.Delivery, error) {
	var d core.Delivery

	var email core.EmailDelivery
	err := s.db.QueryRow(
		`SELECT pipeline_id, email, subject_tpl FROM email_deliveries WHERE pipeline_id = ?`, pipelineID,
	).Scan(&email.PipelineID, &email.Email, &email.SubjectTpl)
	if err == nil {
		d.Email = &email
	} else if err != sql.ErrNoRows {
		return d, fmt.Errorf("failed to read email delivery: %w", err)
	}

	var chat core.ChatDelivery
	err = s.db.QueryRow(
		`SELECT pipeline_id, app_id, app_secret, to_all_chat, chat_id, title_tpl
		 FROM chat_deliveries WHERE pipeline_id = ?`, pipelineID,
	).Scan(&chat.PipelineID, &chat.AppID, &chat.AppSecret, &chat.ToAllChat, &chat.ChatID, &chat.TitleTpl)
	if err == nil {
		d.Chat = &chat
	} else if err != sql.ErrNoRows {
		return d, fmt.Errorf("failed to read chat delivery: %w", err)
	}

	return d, nil
}
