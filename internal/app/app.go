// Package app initializes and orchestrates the main components of Patch
// Warden. It wires together the configuration, validation pipeline, engine,
// and history store.
package app

import (
	"fmt"
	"log/slog"

	"github.com/sevigo/patch-warden/internal/apply"
	"github.com/sevigo/patch-warden/internal/config"
	"github.com/sevigo/patch-warden/internal/db"
	"github.com/sevigo/patch-warden/internal/engine"
	"github.com/sevigo/patch-warden/internal/gitutil"
	"github.com/sevigo/patch-warden/internal/storage"
	"github.com/sevigo/patch-warden/internal/validate"
)

// App holds the main application components.
type App struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Engine  *engine.Engine
	Applier *apply.Applier
	Store   storage.Store
	Git     *gitutil.Client
}

// NewApp sets up the application with all its dependencies. The returned
// cleanup func closes the history database.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	logger.Debug("initializing patch warden",
		"project_root", cfg.ProjectRoot,
		"max_workers", cfg.MaxWorkers,
		"policy", cfg.Policy,
	)

	var (
		rules *validate.Rules
		err   error
	)
	if cfg.RulesPath != "" {
		rules, err = validate.LoadRules(cfg.RulesPath)
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to load rules from %s: %w", cfg.RulesPath, err)
		}
	} else {
		rules, err = validate.DefaultRules()
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to compile default rules: %w", err)
		}
	}

	pipeline, err := validate.NewPipeline(rules, validate.Toggles{
		Compatibility: cfg.Validators.Compatibility,
		Security:      cfg.Validators.Security,
	}, logger)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to build validation pipeline: %w", err)
	}

	database, closeDB, err := db.NewDatabase(cfg.HistoryDBPath)
	if err != nil {
		return nil, func() {}, err
	}

	applier := apply.New(cfg.ProjectRoot, logger)

	return &App{
		Cfg:     cfg,
		Logger:  logger,
		Engine:  engine.New(pipeline, applier, cfg.BackupRoot, cfg.MaxWorkers, logger),
		Applier: applier,
		Store:   storage.NewStore(database.DB),
		Git:     gitutil.NewClient(logger),
	}, closeDB, nil
}
