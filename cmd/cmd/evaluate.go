package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"newsflow/internal/config"
	"newsflow/internal/evaluator"
	"newsflow/internal/llm"
)

var (
	evaluateHours      int
	evaluateLimit      int
	evaluateKey        string
	evaluateCategories []string
	evaluateSources    []string
	evaluateOverwrite  bool
	evaluatePipeline   int64
)

// evaluateCmd scores unreviewed articles with the configured LLM.
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score collected articles with the LLM",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		if err := cfg.AI.ValidateAI(); err != nil {
			return err
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		client, err := llm.NewClient(llm.Options{
			BaseURL:     cfg.AI.BaseURL,
			Path:        cfg.AI.Path,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     config.Duration(cfg.AI.Timeout, 60*time.Second),
			Interval:    config.Duration(cfg.AI.RequestInterval, 0),
		})
		if err != nil {
			return err
		}
		prompt, err := evaluator.LoadPrompt(cfg.AI.PromptPath)
		if err != nil {
			return err
		}

		key := evaluateKey

		pipelineID := evaluatePipeline
		if pipelineID == 0 {
			pipelineID = cfg.Runner.PipelineID
		}
		if pipelineID > 0 {
			p, err := s.GetPipelineByID(pipelineID)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("pipeline %d not found", pipelineID)
			}
			if key == "" {
				key = p.EvaluatorKey
			}
		}
		if key == "" {
			key = cfg.Runner.EvaluatorKey
		}
		if key == "" {
			key = "default"
		}

		ev := evaluator.New(s, client, prompt)
		result, err := ev.Run(cmd.Context(), evaluator.Options{
			EvaluatorKey: key,
			Hours:        evaluateHours,
			Categories:   evaluateCategories,
			Sources:      evaluateSources,
			Limit:        evaluateLimit,
			Overwrite:    evaluateOverwrite,
			Weights:      scoreWeightOverrides(cfg.AI.ScoreWeights),
			MaxRetries:   cfg.AI.MaxRetries,
		})
		if err != nil {
			return err
		}
		fmt.Printf("evaluated %d of %d candidates (%d failed)\n", result.Evaluated, result.Candidates, result.Failed)
		return nil
	},
}

// scoreWeightOverrides decodes the AI_SCORE_WEIGHTS JSON override, ignoring
// malformed input.
func scoreWeightOverrides(raw string) map[string]float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var weights map[string]float64
	if err := json.Unmarshal([]byte(raw), &weights); err != nil {
		fmt.Printf("Warning: ignoring malformed AI_SCORE_WEIGHTS: %v\n", err)
		return nil
	}
	return weights
}

func init() {
	evaluateCmd.Flags().IntVar(&evaluateHours, "hours", 24, "Candidate window in hours (0 = unbounded)")
	evaluateCmd.Flags().IntVar(&evaluateLimit, "limit", 0, "Max candidates (default from config)")
	evaluateCmd.Flags().StringVar(&evaluateKey, "evaluator-key", "", "Evaluator key (default from PIPELINE_EVALUATOR_KEY)")
	evaluateCmd.Flags().StringArrayVar(&evaluateCategories, "category", nil, "Restrict to a category (repeatable)")
	evaluateCmd.Flags().StringArrayVar(&evaluateSources, "source", nil, "Restrict to a source key (repeatable)")
	evaluateCmd.Flags().BoolVar(&evaluateOverwrite, "overwrite", false, "Re-evaluate already reviewed articles")
	evaluateCmd.Flags().Int64Var(&evaluatePipeline, "pipeline-id", 0, "Take the evaluator key from this pipeline (default from PIPELINE_ID)")
	rootCmd.AddCommand(evaluateCmd)
}
