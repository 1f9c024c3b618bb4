package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "ingot.db")

	// Artifact defaults
	v.SetDefault("artifacts.root", "artifacts")

	// Pipeline defaults
	v.SetDefault("pipeline.workers", 2)
	v.SetDefault("pipeline.poll_interval_seconds", 5)
	v.SetDefault("pipeline.dispatch_per_minute", 30)
	v.SetDefault("pipeline.landing_retry_attempts", 3)

	// Validation defaults
	v.SetDefault("validation.min_rows", 1)
	v.SetDefault("validation.max_rows", 0)               // unbounded
	v.SetDefault("validation.null_rate_threshold", 0.05) // 5% nulls per column
	v.SetDefault("validation.duplicate_rate_threshold", 0.01)
	v.SetDefault("validation.drift_warn_ratio", 0.3)     // ±30% row-count drift warns
	v.SetDefault("validation.drift_critical_ratio", 0.0) // never escalate unless configured
	v.SetDefault("validation.sample_cap", 10)

	// Quarantine defaults
	v.SetDefault("quarantine.size_threshold_bytes", 8192)
	v.SetDefault("quarantine.min_populated_fields", 3)

	// Observability defaults
	v.SetDefault("observability.expected_cadence_hours", 24.0)
	v.SetDefault("observability.expected_row_count", 0)

	// Fetch defaults
	v.SetDefault("fetch.landing_dir", "landing")
	v.SetDefault("fetch.requests_per_minute", 30)
	v.SetDefault("fetch.timeout_seconds", 300)
}
