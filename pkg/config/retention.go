package config

import (
	"os"
	"time"
)

// RetentionConfig controls run-history retention and cleanup behavior.
type RetentionConfig struct {
	// RunRetentionDays is how many days completed runs stay in the journal
	// before the cleanup loop deletes them. Zero disables cleanup.
	RunRetentionDays int

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RunRetentionDays: 365,
		CleanupInterval:  12 * time.Hour,
	}
}

// RetentionFromEnv reads HISTORY_RETENTION_DAYS and HISTORY_CLEANUP_INTERVAL
// over the defaults. Unparseable values keep the default.
func RetentionFromEnv() *RetentionConfig {
	cfg := DefaultRetentionConfig()
	cfg.RunRetentionDays = intEnv("HISTORY_RETENTION_DAYS", cfg.RunRetentionDays)
	if raw := os.Getenv("HISTORY_CLEANUP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.CleanupInterval = d
		}
	}
	return cfg
}
