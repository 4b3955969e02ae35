// Package runner sequences collect, evaluate, write and deliver for
// configured pipelines.
package runner

import (
	"context"
	"fmt"
	"time"

	"newsflow/internal/config"
	"newsflow/internal/core"
	"newsflow/internal/deliver"
	"newsflow/internal/evaluator"
	"newsflow/internal/llm"
	"newsflow/internal/logger"
	"newsflow/internal/store"
	"newsflow/internal/timeutil"
)

// EmailTransport is the mail surface the runner needs; satisfied by
// deliver.EmailSender.
type EmailTransport interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) (string, error)
}

// ChatTransport is the chat surface; satisfied by deliver.ChatSender.
type ChatTransport interface {
	SendMarkdown(ctx context.Context, chatID, title, markdown string, asCard bool) error
	Broadcast(ctx context.Context, title, markdown string, asCard bool) (int, []error)
}

// ChatClient mirrors evaluator.ChatClient for injection.
type ChatClient = evaluator.ChatClient

// Options select which pipelines run and how gating applies.
type Options struct {
	Name          string
	ID            int64
	All           bool
	DebugOnly     bool
	IgnoreWeekday bool
}

// Runner executes the per-pipeline state machine.
type Runner struct {
	store *store.Store
	cfg   *config.Config
	now   func() time.Time

	// Injection points; production wiring comes from newTransports.
	newEmail func(d *core.EmailDelivery) (EmailTransport, error)
	newChat  func(d *core.ChatDelivery) (ChatTransport, error)
	newLLM   func() (ChatClient, error)
}

func New(s *store.Store, cfg *config.Config) *Runner {
	r := &Runner{store: s, cfg: cfg, now: time.Now}
	r.newEmail = func(d *core.EmailDelivery) (EmailTransport, error) {
		return deliver.NewEmailSender(deliver.EmailConfig{
			APIBase:         cfg.Mail.APIBase,
			APIKey:          cfg.Mail.APIKey,
			From:            cfg.Mail.From,
			ListUnsubscribe: cfg.Mail.ListUnsubscribe,
			Timeout:         config.Duration(cfg.Mail.Timeout, 30*time.Second),
		})
	}
	r.newChat = func(d *core.ChatDelivery) (ChatTransport, error) {
		appID, appSecret := d.AppID, d.AppSecret
		if appID == "" {
			appID, appSecret = cfg.Chat.AppID, cfg.Chat.AppSecret
		}
		return deliver.NewChatSender(deliver.ChatConfig{
			APIBase:   cfg.Chat.APIBase,
			AppID:     appID,
			AppSecret: appSecret,
			Timeout:   config.Duration(cfg.Chat.Timeout, 15*time.Second),
		})
	}
	r.newLLM = func() (ChatClient, error) {
		if err := cfg.AI.ValidateAI(); err != nil {
			return nil, err
		}
		return llm.NewClient(llm.Options{
			BaseURL:     cfg.AI.BaseURL,
			Path:        cfg.AI.Path,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     config.Duration(cfg.AI.Timeout, 60*time.Second),
			Interval:    config.Duration(cfg.AI.RequestInterval, 0),
		})
	}
	return r
}

// SetClock overrides the runner's time source for tests.
func (r *Runner) SetClock(now func() time.Time) { r.now = now }

// SetTransports overrides the transport constructors for tests.
func (r *Runner) SetTransports(
	newEmail func(*core.EmailDelivery) (EmailTransport, error),
	newChat func(*core.ChatDelivery) (ChatTransport, error),
	newLLM func() (ChatClient, error),
) {
	if newEmail != nil {
		r.newEmail = newEmail
	}
	if newChat != nil {
		r.newChat = newChat
	}
	if newLLM != nil {
		r.newLLM = newLLM
	}
}

// Result reports what happened to each selected pipeline.
type Result struct {
	Ran     []int64
	Skipped []int64
	Failed  []int64
}

// Run executes the selected pipelines in id order. Per-pipeline failures are
// contained; only selection errors are fatal.
func (r *Runner) Run(ctx context.Context, opts Options) (Result, error) {
	var result Result

	pipelines, err := r.selectPipelines(opts)
	if err != nil {
		return result, err
	}
	if len(pipelines) == 0 {
		fmt.Println("no pipelines selected")
		return result, nil
	}

	for _, p := range pipelines {
		fmt.Printf("[PIPELINE %d] %s\n", p.ID, p.Name)

		switch r.runOne(ctx, p, opts) {
		case outcomeDone:
			result.Ran = append(result.Ran, p.ID)
		case outcomeSkipped:
			result.Skipped = append(result.Skipped, p.ID)
		case outcomeFailed:
			result.Failed = append(result.Failed, p.ID)
		}
	}
	return result, nil
}

func (r *Runner) selectPipelines(opts Options) ([]core.Pipeline, error) {
	switch {
	case opts.All:
		return r.store.ListPipelines(false)
	case opts.Name != "":
		p, err := r.store.GetPipelineByName(opts.Name)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("pipeline %q not found", opts.Name)
		}
		return []core.Pipeline{*p}, nil
	case opts.ID > 0:
		p, err := r.store.GetPipelineByID(opts.ID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("pipeline %d not found", opts.ID)
		}
		return []core.Pipeline{*p}, nil
	default:
		return nil, fmt.Errorf("one of --name, --id or --all is required")
	}
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (r *Runner) runOne(ctx context.Context, p core.Pipeline, opts Options) outcome {
	if !p.Enabled {
		fmt.Printf("[PIPELINE %d] skipped: disabled\n", p.ID)
		return outcomeSkipped
	}
	if opts.DebugOnly && !p.DebugEnabled {
		fmt.Printf("[PIPELINE %d] skipped: not debug-enabled\n", p.ID)
		return outcomeSkipped
	}

	loc := timeutil.LoadLocation(r.cfg.Runner.TZ)
	if !opts.IgnoreWeekday && !r.cfg.Runner.ForceRun {
		if !timeutil.WeekdayAllowed(p.Weekdays, r.now(), loc) {
			fmt.Printf("[PIPELINE %d] skipped: weekday gate\n", p.ID)
			return outcomeSkipped
		}
	}

	plan, err := r.validate(p)
	if err != nil {
		fmt.Printf("[FAIL] pipeline %d: %v\n", p.ID, err)
		logger.Error("pipeline class validation failed", err, "pipeline_id", p.ID)
		return outcomeFailed
	}

	// One explicit context flows through every step; the steps never reach
	// back to the pipeline row or the runner clock directly.
	pctx := core.PipelineContext{
		PipelineID:   p.ID,
		EvaluatorKey: p.EvaluatorKey,
		Now:          r.now,
	}

	if err := r.stepCollect(ctx, pctx, plan); err != nil {
		fmt.Printf("[FAIL] pipeline %d collect: %v\n", p.ID, err)
		logger.Error("collect step failed", err, "pipeline_id", p.ID)
		return outcomeFailed
	}
	if err := r.stepEvaluate(ctx, pctx, plan); err != nil {
		fmt.Printf("[FAIL] pipeline %d evaluate: %v\n", p.ID, err)
		logger.Error("evaluate step failed", err, "pipeline_id", p.ID)
		return outcomeFailed
	}
	out, err := r.stepWrite(pctx, plan)
	if err != nil {
		fmt.Printf("[FAIL] pipeline %d write: %v\n", p.ID, err)
		logger.Error("write step failed", err, "pipeline_id", p.ID)
		return outcomeFailed
	}
	if err := r.stepDeliver(ctx, pctx, plan, out); err != nil {
		fmt.Printf("[FAIL] pipeline %d deliver: %v\n", p.ID, err)
		logger.Error("deliver step failed", err, "pipeline_id", p.ID)
		return outcomeFailed
	}

	fmt.Printf("[DONE] pipeline %d\n", p.ID)
	return outcomeDone
}
