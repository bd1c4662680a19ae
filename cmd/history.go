// File: cmd/history.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/handsfree/internal/observability"
	"github.com/xkilldash9x/handsfree/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent plan executions",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.RecentExecutions(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("no executions recorded yet")
			return nil
		}
		for _, rec := range recs {
			status := "ok"
			if !rec.Success {
				status = "FAILED"
			}
			fmt.Printf("%s  %-6s  %7.0fms  %s\n",
				rec.StartedAt.Local().Format(time.DateTime),
				status, rec.DurationMS, rec.RawCommand)
			fmt.Printf("  id: %s\n", rec.ID)
			if rec.FailureReason != "" {
				fmt.Printf("  reason: %s\n", rec.FailureReason)
			}
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Show one execution with its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := st.Execution(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("command:  %s\n", rec.RawCommand)
		fmt.Printf("intent:   %s (%s)\n", rec.Intent.Action, rec.Intent.Target)
		fmt.Printf("strategy: %s\n", rec.Strategy)
		fmt.Printf("window:   %s\n", rec.WindowTitle)
		fmt.Printf("success:  %v  (%.0fms)\n", rec.Success, rec.DurationMS)
		if rec.FailureReason != "" {
			fmt.Printf("failure:  %s\n", rec.FailureReason)
		}
		for _, step := range rec.Steps {
			fmt.Printf("  %d. %-16s %-10s %7.0fms", step.Index+1, step.Action, step.Status, step.DurationMS)
			if step.Verified {
				fmt.Print("  verified")
			}
			if step.Error != "" {
				fmt.Printf("  %s", step.Error)
			}
			fmt.Println()
		}
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-action success statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.ActionStats(cmd.Context())
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Println("no executions recorded yet")
			return nil
		}
		fmt.Printf("%-20s %6s %9s %12s\n", "action", "runs", "failures", "avg ms")
		for _, s := range stats {
			fmt.Printf("%-20s %6d %9d %12.0f\n", s.Action, s.Runs, s.Failures, s.AvgDurationMS)
		}
		return nil
	},
}

func openStore() (*store.Store, error) {
	return store.Open(cfg.Store(), observability.GetLogger())
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of executions to list")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
	rootCmd.AddCommand(historyCmd)
}
