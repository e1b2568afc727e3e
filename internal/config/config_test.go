package config

import (
	"testing"
	"time"

	"github.com/sevigo/patch-warden/internal/core"
)

func validConfig() *Config {
	return &Config{
		ProjectRoot:        ".",
		BackupRoot:         ".patch-warden/backups",
		HistoryDBPath:      ".patch-warden/history.db",
		MaxWorkers:         4,
		BatchTimeout:       2 * time.Minute,
		Policy:             core.PolicyBestEffort,
		AutoApplyThreshold: 0.8,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.MaxWorkers = 0 },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.BatchTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "unknown policy",
			mutate:  func(c *Config) { c.Policy = "eventually" },
			wantErr: true,
		},
		{
			name:    "all_or_nothing policy",
			mutate:  func(c *Config) { c.Policy = core.PolicyAllOrNothing },
			wantErr: false,
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.AutoApplyThreshold = 1.2 },
			wantErr: true,
		},
		{
			name:    "threshold below zero",
			mutate:  func(c *Config) { c.AutoApplyThreshold = -0.1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
