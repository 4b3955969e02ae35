package core

import "time"

// Category groups sources for filtering and digest sectioning.
type Category struct {
	Key     string `json:"key"`     // Stable identifier referenced by sources
	Label   string `json:"label"`   // Display label
	Enabled bool   `json:"enabled"` // Disabled categories are never collected
}

// Source describes one external site or feed an adapter knows how to read.
type Source struct {
	ID          int64    `json:"id"`
	Key         string   `json:"key"`          // Unique stable key, e.g. "openai.research"
	Label       string   `json:"label"`        // Display label
	CategoryKey string   `json:"category_key"` // Category this source belongs to
	ScriptPath  string   `json:"script_path"`  // Adapter locator; defaults to Key when empty
	Enabled     bool     `json:"enabled"`
	Addresses   []string `json:"addresses"` // Feed/page URLs the adapter may use
}

// SourceRun records the last successful collection time for a source.
type SourceRun struct {
	SourceID  int64     `json:"source_id"`
	LastRunAt time.Time `json:"last_run_at"` // UTC
}

// Info is one harvested article. Link is globally unique; rows are never
// deleted by the runtime.
type Info struct {
	ID        int64  `json:"id"`
	Source    string `json:"source"`   // Source key
	Category  string `json:"category"` // Category key
	Publish   string `json:"publish"`  // ISO-8601 UTC or empty when unknown
	Title     string `json:"title"`
	Detail    string `json:"detail"` // Plain-text body, back-filled after insert
	Link      string `json:"link"`   // Canonical article URL, unique
	StoreLink string `json:"store_link,omitempty"`
	Creator   string `json:"creator,omitempty"`
	ImgLink   string `json:"img_link,omitempty"`
}

// AiMetric is one configurable 1..5 scoring dimension.
type AiMetric struct {
	ID            int64   `json:"id"`
	Key           string  `json:"key"` // Unique stable key, e.g. "timeliness"
	Label         string  `json:"label"`
	RateGuide     string  `json:"rate_guide"` // Guidance text injected into the prompt
	DefaultWeight float64 `json:"default_weight"`
	Active        bool    `json:"active"`
	SortOrder     int     `json:"sort_order"`
}

// InfoAiScore is one metric score for one article. Overwritten on
// re-evaluation.
type InfoAiScore struct {
	InfoID   int64 `json:"info_id"`
	MetricID int64 `json:"metric_id"`
	Score    int   `json:"score"` // Clamped to [1,5]
}

// InfoAiReview is the per-(article, evaluator) review row.
type InfoAiReview struct {
	InfoID        int64    `json:"info_id"`
	EvaluatorKey  string   `json:"evaluator_key"`
	FinalScore    float64  `json:"final_score"` // Clamped to [1.0,5.0]
	AiComment     string   `json:"ai_comment"`
	AiSummary     string   `json:"ai_summary"`
	AiSummaryLong string   `json:"ai_summary_long,omitempty"`
	AiKeyConcepts []string `json:"ai_key_concepts,omitempty"` // At most 5
	RawResponse   string   `json:"raw_response"`              // Final valid LLM response, for auditing
}

// Pipeline is one configured digest run.
type Pipeline struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"` // Unique
	Enabled      bool   `json:"enabled"`
	DebugEnabled bool   `json:"debug_enabled"`
	EvaluatorKey string `json:"evaluator_key"`
	ClassID      int64  `json:"pipeline_class_id"`
	Weekdays     *[]int `json:"weekdays,omitempty"` // nil: unrestricted; empty: never; else ISO weekdays 1..7
	Description  string `json:"description,omitempty"`
}

// PipelineClass bounds what a pipeline may combine.
type PipelineClass struct {
	ID         int64    `json:"id"`
	Key        string   `json:"key"` // Unique
	Categories []string `json:"categories"`
	Evaluators []string `json:"evaluators"`
	Writers    []string `json:"writers"`
}

// PipelineFilters selects which categories and sources feed a pipeline.
type PipelineFilters struct {
	PipelineID     int64    `json:"pipeline_id"`
	AllCategories  bool     `json:"all_categories"`
	Categories     []string `json:"categories"`
	AllSources     bool     `json:"all_src"`
	IncludeSources []string `json:"include_src"`
}

// PipelineWriter configures digest composition for a pipeline.
type PipelineWriter struct {
	PipelineID       int64              `json:"pipeline_id"`
	Type             string             `json:"type"`  // One of the Writer* constants
	Hours            int                `json:"hours"` // Candidate window
	Weights          map[string]float64 `json:"weights"`            // Metric key -> weight override
	SourceBonus      map[string]float64 `json:"source_bonus"`       // Source key -> additive bonus
	LimitPerCategory map[string]int     `json:"limit_per_category"` // Category key (or "default") -> cap
	PerSourceCap     int                `json:"per_source_cap"`
	MinScore         float64            `json:"min_score"`
}

// Writer kinds.
const (
	WriterEmailHTML    = "email_html"
	WriterChatMarkdown = "chat_markdown"
	WriterMinigame     = "minigame"
)

// EmailDelivery sends the digest through the transactional mail API.
type EmailDelivery struct {
	PipelineID int64  `json:"pipeline_id"`
	Email      string `json:"email"`
	SubjectTpl string `json:"subject_tpl"` // Supports ${date_zh} and ${ts}
}

// ChatDelivery sends the digest through the group-chat API.
type ChatDelivery struct {
	PipelineID int64  `json:"pipeline_id"`
	AppID      string `json:"app_id"`
	AppSecret  string `json:"app_secret"`
	ToAllChat  bool   `json:"to_all_chat"` // Broadcast to every visible chat
	ChatID     string `json:"chat_id,omitempty"`
	TitleTpl   string `json:"title_tpl"` // Supports ${date_zh} and ${ts}
}

// Delivery is the tagged union of the two transports. Exactly one arm is
// non-nil for a valid pipeline.
type Delivery struct {
	Email *EmailDelivery `json:"email,omitempty"`
	Chat  *ChatDelivery  `json:"chat,omitempty"`
}

// Valid reports whether exactly one transport is configured.
func (d Delivery) Valid() bool {
	return (d.Email != nil) != (d.Chat != nil)
}

// Entry is the normalized record an adapter produces for one article.
type Entry struct {
	Title     string `json:"title"` // Required
	URL       string `json:"url"`   // Required, absolute
	Published string `json:"published"` // ISO-8601 UTC or empty
	Source    string `json:"source,omitempty"`   // Defaults to the adapter's source key
	Category  string `json:"category,omitempty"` // Defaults to the adapter's category
	Detail    string `json:"detail,omitempty"`
	Img       string `json:"img,omitempty"`
	StoreLink string `json:"store_link,omitempty"`
	Creator   string `json:"creator,omitempty"`
}

// PipelineContext carries pipeline identity through collect, evaluate, write
// and deliver instead of implicit globals. Now is injectable for tests.
type PipelineContext struct {
	PipelineID   int64
	EvaluatorKey string
	Now          func() time.Time
}

// Clock returns the context's time source, falling back to time.Now.
func (p PipelineContext) Clock() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
