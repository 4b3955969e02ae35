package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsflow/internal/config"
	"newsflow/internal/runner"
)

var (
	runnerName          string
	runnerID            int64
	runnerAll           bool
	runnerDebugOnly     bool
	runnerIgnoreWeekday bool
)

// runnerCmd executes the full collect -> evaluate -> write -> deliver sequence
// for configured pipelines. Per-pipeline failures under --all are reported but
// do not set a non-zero exit code.
var runnerCmd = &cobra.Command{
	Use:   "runner",
	Short: "Run configured pipelines end to end",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		opts := runner.Options{
			Name:          runnerName,
			ID:            runnerID,
			All:           runnerAll,
			DebugOnly:     runnerDebugOnly,
			IgnoreWeekday: runnerIgnoreWeekday,
		}
		// PIPELINE_ID serves as the ambient selector when no flag is given.
		if !opts.All && opts.Name == "" && opts.ID == 0 {
			opts.ID = cfg.Runner.PipelineID
		}

		result, err := runner.New(s, cfg).Run(cmd.Context(), opts)
		if err != nil {
			return err
		}
		fmt.Printf("runner finished: %d ran, %d skipped, %d failed\n",
			len(result.Ran), len(result.Skipped), len(result.Failed))
		return nil
	},
}

func init() {
	runnerCmd.Flags().StringVar(&runnerName, "name", "", "Pipeline name to run")
	runnerCmd.Flags().Int64Var(&runnerID, "id", 0, "Pipeline id to run")
	runnerCmd.Flags().BoolVar(&runnerAll, "all", false, "Run every pipeline in id order")
	runnerCmd.Flags().BoolVar(&runnerDebugOnly, "debug-only", false, "Only run debug-enabled pipelines")
	runnerCmd.Flags().BoolVar(&runnerIgnoreWeekday, "ignore-weekday", false, "Skip the weekday gate")
	rootCmd.AddCommand(runnerCmd)
}
