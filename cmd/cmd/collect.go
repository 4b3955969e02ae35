package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"newsflow/internal/collector"
	"newsflow/internal/config"
	"newsflow/internal/sources"
)

var collectSources string

// collectCmd harvests articles without going through a pipeline. With no
// --sources flag every registered adapter runs.
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect articles from source adapters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		keys := sources.Keys()
		if collectSources != "" {
			keys = nil
			for _, key := range strings.Split(collectSources, ",") {
				if key = strings.TrimSpace(key); key != "" {
					keys = append(keys, key)
				}
			}
		}
		if len(keys) == 0 {
			return fmt.Errorf("no sources to collect")
		}

		c := collector.New(s, collector.Options{
			AdapterBudget: config.Duration(cfg.Runner.AdapterBudget, 0),
			BackfillLimit: cfg.Runner.BackfillLimit,
		})
		result := c.Collect(cmd.Context(), keys)

		fmt.Printf("collected %d new articles, backfilled %d details\n", result.NewRows, result.Backfilled)
		if len(result.Failed) > 0 {
			fmt.Printf("failed sources: %s\n", strings.Join(result.Failed, ", "))
		}
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectSources, "sources", "", "Comma-separated source keys (default: all registered)")
	rootCmd.AddCommand(collectCmd)
}
