package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sevigo/patch-warden/internal/fixset"
	"github.com/sevigo/patch-warden/internal/report"
)

var validateCmd = &cobra.Command{
	Use:   "validate [fixset.json]",
	Short: "Validate a set of fixes without touching any file.",
	Long: `Run the full validation pipeline over every fix in the set and print the
report. Nothing is written to disk and nothing is recorded in the history.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	validateCmd.Flags().Float64Var(&flagThreshold, "threshold", -1, "Confidence threshold for automatic application")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	application, cleanup, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	set, err := fixset.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load fix set: %w", err)
	}

	opts := optionsFromFlags(cmd, application)
	opts.DryRun = true

	rep, err := application.Engine.Run(context.Background(), *set, opts)
	if rep != nil {
		report.Render(os.Stdout, rep)
	}
	return err
}
