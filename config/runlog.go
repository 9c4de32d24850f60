package config

import (
	"fmt"

	"github.com/kilianp07/sampler/core/runlog"
)

const (
	RunLogJSONL  = "jsonl"
	RunLogSQLite = "sqlite"
)

// RunLogConfig defines settings for the run history store and its rotation.
type RunLogConfig struct {
	Enabled bool `json:"enabled"`
	// Backend selects the store: "jsonl" (default) or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *RunLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = RunLogJSONL
	}
	if c.Path == "" {
		if c.Backend == RunLogSQLite {
			c.Path = "sampler-runs.db"
		} else {
			c.Path = "sampler-runs.jsonl"
		}
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks mandatory fields.
func (c RunLogConfig) Validate() error {
	if c.Enabled && c.Path == "" {
		return fmt.Errorf("path is required")
	}
	switch c.Backend {
	case "", RunLogJSONL, RunLogSQLite:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("rotation limits must not be negative")
	}
	return nil
}

// Open creates the store selected by Backend. Rotation limits only apply to
// the JSON lines backend.
func (c RunLogConfig) Open() (runlog.Store, error) {
	switch c.Backend {
	case RunLogSQLite:
		st, err := runlog.NewSQLiteStore(c.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "", RunLogJSONL:
		st, err := runlog.NewJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("runlog: unknown backend %q", c.Backend)
	}
}
