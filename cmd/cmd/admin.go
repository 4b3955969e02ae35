package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Read-only inspection commands for the stored configuration.

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Inspect configured sources",
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		list, err := s.ListSources(false)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("no sources configured")
			return nil
		}
		for _, src := range list {
			state := "enabled"
			if !src.Enabled {
				state = "disabled"
			}
			fmt.Printf("%-4d %-28s %-8s %s\n", src.ID, src.Key, src.CategoryKey, state)
		}
		return nil
	},
}

var metricCmd = &cobra.Command{
	Use:   "metric",
	Short: "Inspect scoring metrics",
}

var metricListCmd = &cobra.Command{
	Use:   "list",
	Short: "List metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		metrics, err := s.ListAllMetrics()
		if err != nil {
			return err
		}
		for _, m := range metrics {
			state := "active"
			if !m.Active {
				state = "inactive"
			}
			fmt.Printf("%-4d %-16s %-10s weight=%.2f %s\n", m.ID, m.Key, m.Label, m.DefaultWeight, state)
		}
		return nil
	},
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Inspect configured pipelines",
}

var pipelineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipelines",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		pipelines, err := s.ListPipelines(false)
		if err != nil {
			return err
		}
		if len(pipelines) == 0 {
			fmt.Println("no pipelines configured")
			return nil
		}
		for _, p := range pipelines {
			state := "enabled"
			if !p.Enabled {
				state = "disabled"
			}
			weekdays := "any day"
			if p.Weekdays != nil {
				if len(*p.Weekdays) == 0 {
					weekdays = "never"
				} else {
					parts := make([]string, len(*p.Weekdays))
					for i, d := range *p.Weekdays {
						parts[i] = fmt.Sprintf("%d", d)
					}
					weekdays = "days " + strings.Join(parts, ",")
				}
			}
			fmt.Printf("%-4d %-20s %-10s evaluator=%s %s\n", p.ID, p.Name, state, p.EvaluatorKey, weekdays)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts for the main tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.GetStats()
		if err != nil {
			return err
		}
		fmt.Printf("sources:   %d\n", stats.Sources)
		fmt.Printf("articles:  %d\n", stats.Infos)
		fmt.Printf("scores:    %d\n", stats.Scores)
		fmt.Printf("reviews:   %d\n", stats.Reviews)
		fmt.Printf("pipelines: %d\n", stats.Pipelines)
		return nil
	},
}

func init() {
	sourceCmd.AddCommand(sourceListCmd)
	metricCmd.AddCommand(metricListCmd)
	pipelineCmd.AddCommand(pipelineListCmd)
	rootCmd.AddCommand(sourceCmd, metricCmd, pipelineCmd, statsCmd)
}
