// Package config loads and validates the engine configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/patch-warden/internal/core"
	"github.com/sevigo/patch-warden/internal/logger"
)

// Validators toggles individual checks of the pipeline. Syntax and semantic
// checks are always on; compatibility and security are pluggable.
type Validators struct {
	Compatibility bool
	Security      bool
}

// Config holds the application's configuration values.
type Config struct {
	ProjectRoot        string
	BackupRoot         string
	HistoryDBPath      string
	RulesPath          string
	MaxWorkers         int
	BatchTimeout       time.Duration
	Policy             core.BatchPolicy
	AutoApplyThreshold float64
	Validators         Validators
	Log                logger.Config
}

// Load reads configuration from environment variables and an optional .env
// file, sets defaults, and validates the result. Environment variables use the
// PW_ prefix (PW_MAX_WORKERS, PW_BATCH_POLICY, ...).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.SetEnvPrefix("PW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("PROJECT_ROOT", ".")
	v.SetDefault("BACKUP_ROOT", ".patch-warden/backups")
	v.SetDefault("HISTORY_DB_PATH", ".patch-warden/history.db")
	v.SetDefault("RULES_PATH", "")
	v.SetDefault("MAX_WORKERS", 4)
	v.SetDefault("BATCH_TIMEOUT", "2m")
	v.SetDefault("BATCH_POLICY", string(core.PolicyBestEffort))
	v.SetDefault("AUTO_APPLY_THRESHOLD", 0.8)
	v.SetDefault("VALIDATE_COMPATIBILITY", false)
	v.SetDefault("VALIDATE_SECURITY", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_OUTPUT", "stderr")

	if err := v.ReadInConfig(); err != nil {
		// A missing .env file is fine; anything else is a real problem.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	timeout, err := time.ParseDuration(v.GetString("BATCH_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid BATCH_TIMEOUT: %w", err)
	}

	cfg := &Config{
		ProjectRoot:        v.GetString("PROJECT_ROOT"),
		BackupRoot:         v.GetString("BACKUP_ROOT"),
		HistoryDBPath:      v.GetString("HISTORY_DB_PATH"),
		RulesPath:          v.GetString("RULES_PATH"),
		MaxWorkers:         v.GetInt("MAX_WORKERS"),
		BatchTimeout:       timeout,
		Policy:             core.BatchPolicy(v.GetString("BATCH_POLICY")),
		AutoApplyThreshold: v.GetFloat64("AUTO_APPLY_THRESHOLD"),
		Validators: Validators{
			Compatibility: v.GetBool("VALIDATE_COMPATIBILITY"),
			Security:      v.GetBool("VALIDATE_SECURITY"),
		},
		Log: logger.Config{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("MAX_WORKERS must be positive, got %d", c.MaxWorkers)
	}
	if c.BatchTimeout <= 0 {
		return fmt.Errorf("BATCH_TIMEOUT must be positive, got %s", c.BatchTimeout)
	}
	if !core.ValidPolicy(c.Policy) {
		return fmt.Errorf("BATCH_POLICY must be %q or %q, got %q",
			core.PolicyBestEffort, core.PolicyAllOrNothing, c.Policy)
	}
	if c.AutoApplyThreshold < 0 || c.AutoApplyThreshold > 1 {
		return fmt.Errorf("AUTO_APPLY_THRESHOLD must be in [0,1], got %v", c.AutoApplyThreshold)
	}
	return nil
}
