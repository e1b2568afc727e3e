package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sevigo/patch-warden/internal/app"
	"github.com/sevigo/patch-warden/internal/config"
	"github.com/sevigo/patch-warden/internal/logger"
)

var (
	flagProjectRoot string
	flagLogLevel    string
	flagLogFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "patch-warden",
	Short: "patch-warden validates and applies automated code fixes.",
	Long: `patch-warden takes a set of proposed code fixes, validates each one
against the live source tree (syntax, semantics, compatibility, security),
and applies the survivors transactionally with full rollback support.`,
	SilenceUsage: true,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.PersistentFlags().StringVar(&flagProjectRoot, "project-root", "", "Project root the fix paths are relative to (default: PW_PROJECT_ROOT or .)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text or json")
}

// loadApp builds the application from the environment plus any persistent
// flag overrides, and installs the process-wide logger.
func loadApp(cmd *cobra.Command) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, func() {}, err
	}

	if cmd.Flags().Changed("project-root") {
		cfg.ProjectRoot = flagProjectRoot
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = flagLogFormat
	}

	log := logger.New(cfg.Log, nil)
	slog.SetDefault(log)

	return app.NewApp(cfg, log)
}
