package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent resolution events",
	Long:  `List recent resolution passes, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, cleanup, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		limit := historyLimit
		if limit <= 0 {
			limit = rt.cfg.HistoryLimit
		}
		entries := rt.hist.List(limit)
		if len(entries) == 0 {
			fmt.Println("No resolution events recorded yet.")
			return nil
		}

		for _, e := range entries {
			line := fmt.Sprintf("%s  %-12s  %-9s  %-16s",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Trigger, e.Tier, e.Source)
			if e.Stale {
				line += "  stale"
			}
			if e.Error != "" {
				line += fmt.Sprintf("  (%s)", e.Error)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum events to show (default from configuration)")
}
