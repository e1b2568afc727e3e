package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/patch-warden/internal/apply"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback [batch-id]",
	Short: "Restore every file a batch committed from its backups.",
	Long: `Restore the files of a previously applied batch from the backups in its
journal, in reverse commit order, and record the rollback in the history.`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	application, cleanup, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	batchID := args[0]

	journal, err := apply.OpenJournal(application.Applier.FS(), application.Cfg.BackupRoot, batchID)
	if err != nil {
		return fmt.Errorf("failed to open journal for batch %s: %w", batchID, err)
	}

	restored, rbErr := journal.Rollback(application.Cfg.ProjectRoot)
	for _, path := range restored {
		color.New(color.FgGreen).Printf("restored %s\n", path)
	}
	if rbErr != nil {
		return rbErr
	}
	if len(restored) == 0 {
		fmt.Println("nothing to restore: batch has no committed files")
		return nil
	}

	if err := application.Store.MarkBatchRolledBack(context.Background(), batchID); err != nil {
		application.Logger.Warn("files restored, but history update failed", "batch_id", batchID, "error", err)
	}

	fmt.Printf("rolled back %d file(s) from batch %s\n", len(restored), batchID)
	return nil
}
