package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sevigo/patch-warden/internal/apply"
)

var flagKeepHistory bool

var purgeCmd = &cobra.Command{
	Use:   "purge [batch-id]",
	Short: "Discard a batch's backups once its outcome is confirmed.",
	Long: `Delete the backup journal of a batch. After a purge the batch can no
longer be rolled back. The history entry is removed as well unless
--keep-history is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runPurge,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	purgeCmd.Flags().BoolVar(&flagKeepHistory, "keep-history", false, "Keep the batch in the history database")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
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
	if err := journal.Purge(); err != nil {
		return fmt.Errorf("failed to purge backups for batch %s: %w", batchID, err)
	}

	if !flagKeepHistory {
		if err := application.Store.DeleteBatch(context.Background(), batchID); err != nil {
			application.Logger.Warn("backups purged, but history delete failed", "batch_id", batchID, "error", err)
		}
	}

	fmt.Printf("purged backups for batch %s\n", batchID)
	return nil
}
