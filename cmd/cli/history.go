package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/patch-warden/internal/report"
)

var flagLimit int

var historyCmd = &cobra.Command{
	Use:   "history [batch-id]",
	Short: "List past batches, or show one batch in full.",
	Long: `Without arguments, list the most recent batches with their per-status fix
counts. With a batch id, print that batch's full report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	historyCmd.Flags().IntVar(&flagLimit, "limit", 20, "Maximum number of batches to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	application, cleanup, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := context.Background()

	if len(args) == 1 {
		rep, err := application.Store.GetReport(ctx, args[0])
		if err != nil {
			return err
		}
		report.Render(os.Stdout, rep)
		return nil
	}

	summaries, err := application.Store.ListBatches(ctx, flagLimit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no batches recorded yet")
		return nil
	}

	header := color.New(color.FgCyan, color.Bold)
	muted := color.New(color.FgHiBlack)

	header.Printf("%-38s %-22s %-15s %8s %9s %8s\n",
		"BATCH", "STARTED", "POLICY", "APPLIED", "REJECTED", "PENDING")
	for _, s := range summaries {
		flags := ""
		if s.DryRun {
			flags += " (dry run)"
		}
		if s.RolledBack {
			flags += " (rolled back)"
		}
		fmt.Printf("%-38s %-22s %-15s %8d %9d %8d%s\n",
			s.BatchID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Policy,
			s.Applied, s.Rejected, s.Pending,
			muted.Sprint(flags),
		)
	}
	return nil
}
