// Package config provides configuration types and defaults for the akasha
// kernel.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/akasha-systems/akasha/internal/tracing"
)

// Config holds all configuration options for the kernel.
type Config struct {
	// ManifestDir is the directory scanned for catalog.yaml files.
	ManifestDir string `mapstructure:"manifest_dir"`

	Field     FieldConfig     `mapstructure:"field"`
	Bus       BusConfig       `mapstructure:"bus"`
	Toggle    ToggleConfig    `mapstructure:"toggle"`
	Integrity IntegrityConfig `mapstructure:"integrity"`
	Tracing   tracing.Config  `mapstructure:"tracing"`
	LogPath   string          `mapstructure:"log_path"`
}

// FieldConfig configures the event field.
type FieldConfig struct {
	// HistoryCapacity bounds the in-memory event history ring.
	HistoryCapacity int `mapstructure:"history_capacity"`
}

// BusConfig configures the event bus request/response layer.
type BusConfig struct {
	// RequestTimeout caps how long a Request waits for its response.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ToggleConfig configures toggle persistence and mirroring.
type ToggleConfig struct {
	// DBPath is the sqlite file holding local toggle state.
	DBPath string `mapstructure:"db_path"`

	// MirrorPath is an optional YAML file mirrored into the store;
	// mirrored values win over local ones. Empty disables mirroring.
	MirrorPath string `mapstructure:"mirror_path"`
}

// IntegrityConfig configures the integrity service.
type IntegrityConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Threshold float64       `mapstructure:"threshold"`

	// ResourceBudgetMB caps the aggregate declared footprint of active
	// modules before the resource check degrades.
	ResourceBudgetMB float64 `mapstructure:"resource_budget_mb"`
}

// DefaultDataDir returns ~/.akasha, or empty string if the home directory
// is unavailable.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".akasha")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	dataDir := DefaultDataDir()
	cfg := Config{
		ManifestDir: "modules",
		Field: FieldConfig{
			HistoryCapacity: 1000,
		},
		Bus: BusConfig{
			RequestTimeout: 5 * time.Second,
		},
		Integrity: IntegrityConfig{
			Interval:         60 * time.Second,
			Threshold:        0.7,
			ResourceBudgetMB: 2048,
		},
		Tracing: tracing.DefaultConfig(),
	}
	if dataDir != "" {
		cfg.Toggle.DBPath = filepath.Join(dataDir, "toggles.db")
		cfg.LogPath = filepath.Join(dataDir, "akasha.log")
		cfg.Tracing.FilePath = filepath.Join(dataDir, "traces", "traces.jsonl")
	}
	return cfg
}
