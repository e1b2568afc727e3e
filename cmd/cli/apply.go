package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/patch-warden/internal/app"
	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/engine"
	"github.com/sevigo/patch-warden/internal/fixset"
	"github.com/sevigo/patch-warden/internal/report"
)

var (
	flagDryRun       bool
	flagPolicy       string
	flagThreshold    float64
	flagTimeout      time.Duration
	flagRequireClean bool
	flagApprove      bool
)

var applyCmd = &cobra.Command{
	Use:   "apply [fixset.json]",
	Short: "Validate and apply a set of fixes to the project.",
	Long: `Validate every fix in the given fix set against the live source tree and
apply the ones that pass. Fixes below the confidence threshold are held for
approval; pass --approve to review them interactively.

Examples:
  patch-warden apply fixes.json
  patch-warden apply --policy all_or_nothing fixes.json
  patch-warden apply --approve fixes.json`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	applyCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Validate and report without writing any file")
	applyCmd.Flags().StringVar(&flagPolicy, "policy", "", "Batch policy: best_effort or all_or_nothing")
	applyCmd.Flags().Float64Var(&flagThreshold, "threshold", -1, "Confidence threshold for automatic application")
	applyCmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "Batch deadline (default: PW_BATCH_TIMEOUT)")
	applyCmd.Flags().BoolVar(&flagRequireClean, "require-clean", false, "Refuse to run if target files have uncommitted changes")
	applyCmd.Flags().BoolVar(&flagApprove, "approve", false, "Interactively review fixes held below the threshold")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	application, cleanup, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	set, err := fixset.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load fix set: %w", err)
	}

	if flagRequireClean {
		if err := ensureClean(application, set); err != nil {
			return err
		}
	}

	opts := optionsFromFlags(cmd, application)
	opts.DryRun = flagDryRun

	ctx := context.Background()
	rep, err := application.Engine.Run(ctx, *set, opts)
	if rep != nil {
		report.Render(os.Stdout, rep)
	}
	if err != nil {
		return err
	}

	// Dry runs are persisted too, flagged as such in the batch history.
	if err := application.Store.SaveReport(ctx, rep); err != nil {
		application.Logger.Error("failed to persist batch report", "batch_id", rep.BatchID, "error", err)
	}

	if flagApprove {
		return approvePending(cmd, application, set, rep, opts)
	}
	return nil
}

// approvePending lets the operator pick from the fixes held below the
// threshold and applies the selection in a follow-up batch.
func approvePending(cmd *cobra.Command, application *app.App, set *core.FixSet, rep *core.BatchReport, opts engine.Options) error {
	pending := pendingFixes(set, rep)
	if len(pending) == 0 {
		return nil
	}

	approved, err := runApprovalTUI(pending)
	if err != nil {
		return err
	}
	if len(approved) == 0 {
		fmt.Println("no fixes approved")
		return nil
	}

	followUp := core.FixSet{
		ID:    set.ID + "-approved",
		Fixes: approved,
	}
	followOpts := opts
	followOpts.Threshold = 0
	followOpts.DryRun = false

	ctx := context.Background()
	followRep, err := application.Engine.Run(ctx, followUp, followOpts)
	if followRep != nil {
		report.Render(os.Stdout, followRep)
	}
	if err != nil {
		return err
	}
	if saveErr := application.Store.SaveReport(ctx, followRep); saveErr != nil {
		application.Logger.Error("failed to persist batch report", "batch_id", followRep.BatchID, "error", saveErr)
	}
	return nil
}

// optionsFromFlags starts from the configured defaults and overlays any
// explicitly set flags.
func optionsFromFlags(cmd *cobra.Command, application *app.App) engine.Options {
	opts := engine.Options{
		Policy:    application.Cfg.Policy,
		Threshold: application.Cfg.AutoApplyThreshold,
		Timeout:   application.Cfg.BatchTimeout,
	}
	if cmd.Flags().Changed("policy") {
		opts.Policy = core.BatchPolicy(flagPolicy)
	}
	if cmd.Flags().Changed("threshold") {
		opts.Threshold = flagThreshold
	}
	if cmd.Flags().Changed("timeout") {
		opts.Timeout = flagTimeout
	}
	return opts
}

func pendingFixes(set *core.FixSet, rep *core.BatchReport) []core.Fix {
	byID := make(map[string]core.Fix, len(set.Fixes))
	for _, f := range set.Fixes {
		byID[f.ID] = f
	}
	var pending []core.Fix
	for _, o := range rep.Outcomes {
		if o.Status != core.StatusNeedsApproval {
			continue
		}
		if f, ok := byID[o.FixID]; ok {
			pending = append(pending, f)
		}
	}
	return pending
}

func ensureClean(application *app.App, set *core.FixSet) error {
	if !application.Git.IsRepository(application.Cfg.ProjectRoot) {
		return fmt.Errorf("--require-clean: %s is not inside a git repository", application.Cfg.ProjectRoot)
	}
	dirty, err := application.Git.DirtyFiles(application.Cfg.ProjectRoot, set.Files())
	if err != nil {
		return fmt.Errorf("--require-clean: %w", err)
	}
	if len(dirty) > 0 {
		return fmt.Errorf("--require-clean: uncommitted changes in %s", strings.Join(dirty, ", "))
	}
	return nil
}
