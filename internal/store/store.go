package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"newsflow/internal/core"
)

// Store is the SQLite-backed persistence layer.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database under dataDir and applies
// migrations.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "newsflow.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates missing tables and applies additive column migrations.
// Existing rows are never rewritten here.
func (s *Store) initialize() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			key TEXT PRIMARY KEY,
			label TEXT,
			enabled INTEGER DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT UNIQUE NOT NULL,
			label TEXT,
			category_key TEXT,
			script_path TEXT,
			enabled INTEGER DEFAULT 1,
			addresses TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS source_runs (
			source_id INTEGER PRIMARY KEY,
			last_run_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS infos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT,
			category TEXT,
			publish TEXT,
			title TEXT,
			detail TEXT,
			link TEXT UNIQUE NOT NULL,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS ai_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT UNIQUE NOT NULL,
			label TEXT,
			rate_guide TEXT,
			default_weight REAL DEFAULT 1.0,
			active INTEGER DEFAULT 1,
			sort_order INTEGER DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS info_ai_scores (
			info_id INTEGER NOT NULL,
			metric_id INTEGER NOT NULL,
			score INTEGER NOT NULL,
			PRIMARY KEY (info_id, metric_id)
		);`,
		`CREATE TABLE IF NOT EXISTS info_ai_reviews (
			info_id INTEGER NOT NULL,
			evaluator_key TEXT NOT NULL,
			final_score REAL,
			ai_comment TEXT,
			ai_summary TEXT,
			ai_summary_long TEXT,
			ai_key_concepts TEXT,
			raw_response TEXT,
			updated_at DATETIME,
			PRIMARY KEY (info_id, evaluator_key)
		);`,
		`CREATE TABLE IF NOT EXISTS pipeline_classes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT UNIQUE NOT NULL,
			categories TEXT,
			evaluators TEXT,
			writers TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS pipelines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			enabled INTEGER DEFAULT 1,
			debug_enabled INTEGER DEFAULT 0,
			evaluator_key TEXT,
			pipeline_class_id INTEGER,
			weekdays TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS pipeline_filters (
			pipeline_id INTEGER PRIMARY KEY,
			all_categories INTEGER DEFAULT 0,
			categories TEXT,
			all_src INTEGER DEFAULT 0,
			include_src TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS pipeline_writers (
			pipeline_id INTEGER PRIMARY KEY,
			type TEXT,
			hours INTEGER,
			weights TEXT,
			source_bonus TEXT,
			limit_per_category TEXT,
			per_source_cap INTEGER DEFAULT 0,
			min_score REAL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS email_deliveries (
			pipeline_id INTEGER PRIMARY KEY,
			email TEXT,
			subject_tpl TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS chat_deliveries (
			pipeline_id INTEGER PRIMARY KEY,
			app_id TEXT,
			app_secret TEXT,
			to_all_chat INTEGER DEFAULT 0,
			chat_id TEXT,
			title_tpl TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_infos_source ON infos (source);`,
		`CREATE INDEX IF NOT EXISTS idx_infos_publish ON infos (publish);`,
	}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Columns added after the initial schema. SQLite has no ADD COLUMN IF
	// NOT EXISTS, so check the table info first.
	migrations := []struct {
		table, column, ddl string
	}{
		{"infos", "store_link", `ALTER TABLE infos ADD COLUMN store_link TEXT DEFAULT ''`},
		{"infos", "creator", `ALTER TABLE infos ADD COLUMN creator TEXT DEFAULT ''`},
		{"infos", "img_link", `ALTER TABLE infos ADD COLUMN img_link TEXT DEFAULT ''`},
		{"pipelines", "description", `ALTER TABLE pipelines ADD COLUMN description TEXT DEFAULT ''`},
	}
	for _, m := range migrations {
		ok, err := s.hasColumn(m.table, m.column)
		if err != nil {
			return err
		}
		if !ok {
			if _, err := s.db.Exec(m.ddl); err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", m.table, m.column, err)
			}
		}
	}

	if err := s.seedDefaults(); err != nil {
		return err
	}

	return nil
}

func (s *Store) hasColumn(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, fmt.Errorf("failed to read table info for %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// seedDefaults inserts the default metric set and a permissive pipeline class
// so a fresh database is usable without an admin step. Existing rows win.
func (s *Store) seedDefaults() error {
	type seedMetric struct {
		key, label, guide string
		weight            float64
		order             int
	}
	metrics := []seedMetric{
		{"timeliness", "时效性", "5: breaking or published within hours; 1: older than a week or undated", 1.0, 1},
		{"importance", "重要性", "5: industry-shifting announcement; 1: routine or promotional", 1.5, 2},
		{"tech_depth", "技术深度", "5: substantial technical detail; 1: headline-only coverage", 1.0, 3},
		{"novelty", "新颖性", "5: genuinely new idea or result; 1: rehash of known material", 1.0, 4},
		{"game_relevance", "游戏相关度", "5: directly about game development or the game industry; 1: unrelated", 0.5, 5},
	}
	for _, m := range metrics {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO ai_metrics (key, label, rate_guide, default_weight, active, sort_order)
			 VALUES (?, ?, ?, ?, 1, ?)`,
			m.key, m.label, m.guide, m.weight, m.order,
		)
		if err != nil {
			return fmt.Errorf("failed to seed metric %s: %w", m.key, err)
		}
	}

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO pipeline_classes (key, categories, evaluators, writers)
		 VALUES (?, ?, ?, ?)`,
		"standard",
		`["ai","tech","game"]`,
		`["default"]`,
		fmt.Sprintf(`["%s","%s","%s"]`, core.WriterEmailHTML, core.WriterChatMarkdown, core.WriterMinigame),
	)
	if err != nil {
		return fmt.Errorf("failed to seed pipeline class: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Stats holds row counts for the inspection commands.
type Stats struct {
	Sources   int `json:"sources"`
	Infos     int `json:"infos"`
	Scores    int `json:"scores"`
	Reviews   int `json:"reviews"`
	Pipelines int `json:"pipelines"`
}

// GetStats returns row counts across the main tables.
func (s *Store) GetStats() (Stats, error) {
	var stats Stats
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM sources`, &stats.Sources},
		{`SELECT COUNT(*) FROM infos`, &stats.Infos},
		{`SELECT COUNT(*) FROM info_ai_scores`, &stats.Scores},
		{`SELECT COUNT(*) FROM info_ai_reviews`, &stats.Reviews},
		{`SELECT COUNT(*) FROM pipelines`, &stats.Pipelines},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return stats, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return stats, nil
}

// placeholders returns a comma-separated "?" list for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
