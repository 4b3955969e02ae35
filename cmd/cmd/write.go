package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"newsflow/internal/composer"
	"newsflow/internal/config"
	"newsflow/internal/core"
)

var (
	writeType         string
	writeHours        int
	writeKey          string
	writeMinScore     float64
	writePerSourceCap int
	writeOut          string
)

// writeCmd composes a digest from already-evaluated articles and prints or
// saves it without delivering.
var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Compose a digest from evaluated articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		metrics, err := s.ListActiveMetrics()
		if err != nil {
			return err
		}

		key := writeKey
		if key == "" {
			key = cfg.Runner.EvaluatorKey
		}
		if key == "" {
			key = "default"
		}

		digest, err := composer.Compose(s, composer.Config{
			EvaluatorKey: key,
			Hours:        writeHours,
			Weights:      composer.ResolveWeights(metrics, nil, scoreWeightOverrides(cfg.AI.ScoreWeights)),
			PerSourceCap: writePerSourceCap,
			MinScore:     writeMinScore,
		}, time.Now().UTC())
		if err != nil {
			return err
		}

		var body string
		switch writeType {
		case core.WriterEmailHTML:
			body, err = composer.RenderHTML(digest, composer.HTMLOptions{
				FrontendBaseURL: cfg.Mail.FrontendBaseURL,
				Metrics:         metrics,
			})
			if err != nil {
				return err
			}
		case core.WriterChatMarkdown:
			body = composer.RenderChatMarkdown(digest)
		case core.WriterMinigame:
			body = composer.RenderMinigame(digest)
		default:
			return fmt.Errorf("unknown writer type %q", writeType)
		}

		if writeOut == "" {
			fmt.Print(body)
			return nil
		}
		if err := os.WriteFile(writeOut, []byte(body), 0644); err != nil {
			return fmt.Errorf("failed to write digest: %w", err)
		}
		fmt.Printf("wrote %d articles to %s\n", digest.Total, writeOut)
		return nil
	},
}

func init() {
	writeCmd.Flags().StringVar(&writeType, "type", core.WriterEmailHTML, "Writer type: email_html, chat_markdown or minigame")
	writeCmd.Flags().IntVar(&writeHours, "hours", 24, "Candidate window in hours")
	writeCmd.Flags().StringVar(&writeKey, "evaluator-key", "", "Evaluator key whose reviews to use")
	writeCmd.Flags().Float64Var(&writeMinScore, "min-score", 0, "Drop articles below this score")
	writeCmd.Flags().IntVar(&writePerSourceCap, "per-source-cap", 0, "Max articles per source (0 = uncapped)")
	writeCmd.Flags().StringVar(&writeOut, "out", "", "Output file (default stdout)")
	rootCmd.AddCommand(writeCmd)
}
