package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"newsflow/internal/collector"
	"newsflow/internal/composer"
	"newsflow/internal/config"
	"newsflow/internal/core"
	"newsflow/internal/deliver"
	"newsflow/internal/evaluator"
	"newsflow/internal/logger"
	"newsflow/internal/timeutil"
)

// writeOutput is what the write step hands to the deliver step.
type writeOutput struct {
	artifactPath string
	body         string // Rendered digest in the writer's format
	text         string // Plain-text alternative, e-mail writers only
	total        int    // Selected articles; zero suppresses delivery
}

func (r *Runner) stepCollect(ctx context.Context, pctx core.PipelineContext, pl *plan) error {
	due, err := r.planCollect(pl.sourceKeys)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		fmt.Printf("[COLLECT] all %d sources fresh, skipping\n", len(pl.sourceKeys))
		return nil
	}
	fmt.Printf("[COLLECT] %d of %d sources due\n", len(due), len(pl.sourceKeys))

	c := collector.New(r.store, collector.Options{
		AdapterBudget: config.Duration(r.cfg.Runner.AdapterBudget, 0),
		BackfillLimit: r.cfg.Runner.BackfillLimit,
	})
	c.SetClock(pctx.Clock)

	res := c.Collect(ctx, due)
	fmt.Printf("[COLLECT] %d new articles, %d details backfilled", res.NewRows, res.Backfilled)
	if len(res.Failed) > 0 {
		fmt.Printf(", %d sources failed (%s)", len(res.Failed), strings.Join(res.Failed, ", "))
	}
	fmt.Println()
	return nil
}

func (r *Runner) stepEvaluate(ctx context.Context, pctx core.PipelineContext, pl *plan) error {
	client, err := r.newLLM()
	if err != nil {
		return err
	}
	prompt, err := evaluator.LoadPrompt(r.cfg.AI.PromptPath)
	if err != nil {
		return err
	}

	ev := evaluator.New(r.store, client, prompt)
	ev.SetClock(pctx.Clock)

	res, err := ev.Run(ctx, evaluator.Options{
		EvaluatorKey:   pctx.EvaluatorKey,
		Hours:          pl.writer.Hours,
		Categories:     pl.categories,
		Sources:        pl.sourceKeys,
		CategoryExempt: pl.rescued,
		Limit:          r.cfg.Runner.EvaluateLimit,
		Weights:        parseScoreWeights(r.cfg.AI.ScoreWeights),
		MaxRetries:     r.cfg.AI.MaxRetries,
	})
	if err != nil {
		return err
	}
	fmt.Printf("[EVAL] %d candidates, %d evaluated, %d failed\n", res.Candidates, res.Evaluated, res.Failed)
	return nil
}

func (r *Runner) stepWrite(pctx core.PipelineContext, pl *plan) (*writeOutput, error) {
	metrics, err := r.store.ListActiveMetrics()
	if err != nil {
		return nil, err
	}
	weights := composer.ResolveWeights(metrics, pl.writer.Weights, parseScoreWeights(r.cfg.AI.ScoreWeights))

	digest, err := composer.Compose(r.store, composer.Config{
		EvaluatorKey:     pctx.EvaluatorKey,
		Hours:            pl.writer.Hours,
		Categories:       pl.categories,
		Sources:          pl.sourceKeys,
		CategoryExempt:   pl.rescued,
		Weights:          weights,
		SourceBonus:      pl.writer.SourceBonus,
		LimitPerCategory: pl.writer.LimitPerCategory,
		PerSourceCap:     pl.writer.PerSourceCap,
		MinScore:         pl.writer.MinScore,
	}, pctx.Clock())
	if err != nil {
		return nil, err
	}

	loc := timeutil.LoadLocation(r.cfg.Runner.TZ)
	title := deliveryTitle(pl, pctx.Clock(), loc)

	out := &writeOutput{total: digest.Total}
	var ext string
	switch pl.writer.Type {
	case core.WriterEmailHTML:
		ext = ".html"
		out.body, err = composer.RenderHTML(digest, composer.HTMLOptions{
			Title:           title,
			FrontendBaseURL: r.cfg.Mail.FrontendBaseURL,
			RecipientEmail:  recipientEmail(pl),
			Metrics:         metrics,
		})
		if err != nil {
			return nil, err
		}
		out.text = composer.RenderPlainText(digest, title)
	case core.WriterChatMarkdown:
		ext = ".md"
		out.body = composer.RenderChatMarkdown(digest)
	case core.WriterMinigame:
		ext = ".txt"
		out.body = composer.RenderMinigame(digest)
	default:
		return nil, fmt.Errorf("unknown writer type %q", pl.writer.Type)
	}

	dir := filepath.Join(r.cfg.App.OutputDir, fmt.Sprintf("pipeline-%d", pctx.PipelineID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	out.artifactPath = filepath.Join(dir, timeutil.Timestamp(pctx.Clock(), loc)+ext)
	if err := os.WriteFile(out.artifactPath, []byte(out.body), 0644); err != nil {
		return nil, fmt.Errorf("failed to write artifact: %w", err)
	}

	fmt.Printf("[WRITE] %d articles -> %s\n", digest.Total, out.artifactPath)
	return out, nil
}

func (r *Runner) stepDeliver(ctx context.Context, pctx core.PipelineContext, pl *plan, out *writeOutput) error {
	if out.total == 0 {
		fmt.Println("[DELIVER] empty digest, nothing sent")
		return nil
	}

	loc := timeutil.LoadLocation(r.cfg.Runner.TZ)

	switch {
	case pl.delivery.Email != nil:
		d := pl.delivery.Email
		sender, err := r.newEmail(d)
		if err != nil {
			return err
		}
		subject := timeutil.RenderSubject(d.SubjectTpl, pctx.Clock(), loc)

		html, text := out.body, out.text
		if text == "" {
			text = out.body
		}
		if r.cfg.Mail.PlainOnly {
			base := strings.TrimSuffix(out.artifactPath, filepath.Ext(out.artifactPath))
			if err := os.WriteFile(base+".txt", []byte(text), 0644); err != nil {
				return fmt.Errorf("failed to write text artifact: %w", err)
			}
			if err := deliver.WriteEML(base+".eml", r.cfg.Mail.From, d.Email, subject, text, html); err != nil {
				return err
			}
			html = ""
		}

		id, err := sender.Send(ctx, d.Email, subject, html, text)
		if err != nil {
			return err
		}
		fmt.Printf("[DELIVER] mailed %s (transmission %s)\n", d.Email, id)
		return nil

	case pl.delivery.Chat != nil:
		d := pl.delivery.Chat
		sender, err := r.newChat(d)
		if err != nil {
			return err
		}
		title := timeutil.RenderSubject(d.TitleTpl, pctx.Clock(), loc)
		asCard := pl.writer.Type == core.WriterChatMarkdown

		if d.ToAllChat {
			sent, errs := sender.Broadcast(ctx, title, out.body, asCard)
			for _, err := range errs {
				logger.Error("chat broadcast partial failure", err, "pipeline_id", pctx.PipelineID)
			}
			if sent == 0 {
				return fmt.Errorf("broadcast reached no chats")
			}
			fmt.Printf("[DELIVER] broadcast to %d chats\n", sent)
			return nil
		}

		chatID := d.ChatID
		if chatID == "" {
			chatID = r.cfg.Chat.DefaultChatID
		}
		if chatID == "" {
			return fmt.Errorf("no chat id configured")
		}
		if err := sender.SendMarkdown(ctx, chatID, title, out.body, asCard); err != nil {
			return err
		}
		fmt.Printf("[DELIVER] sent to chat %s\n", chatID)
		return nil
	}
	return fmt.Errorf("pipeline %d has no delivery transport", pctx.PipelineID)
}

// deliveryTitle renders the configured subject or title template for the
// digest heading.
func deliveryTitle(pl *plan, now time.Time, loc *time.Location) string {
	tpl := ""
	if pl.delivery.Email != nil {
		tpl = pl.delivery.Email.SubjectTpl
	} else if pl.delivery.Chat != nil {
		tpl = pl.delivery.Chat.TitleTpl
	}
	return timeutil.RenderSubject(tpl, now, loc)
}

func recipientEmail(pl *plan) string {
	if pl.delivery.Email != nil {
		return pl.delivery.Email.Email
	}
	return ""
}

// parseScoreWeights decodes the AI_SCORE_WEIGHTS JSON override. Malformed
// input is logged and ignored rather than aborting the run.
func parseScoreWeights(raw string) map[string]float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var weights map[string]float64
	if err := json.Unmarshal([]byte(raw), &weights); err != nil {
		logger.Warn("ignoring malformed score weights override", "error", err.Error())
		return nil
	}
	return weights
}
