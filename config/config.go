// Package config loads and validates ingot configuration.
//
// Configuration is read from a TOML file (ingot.toml) with environment
// variable overrides (INGOT_ prefix). Instances are explicitly constructed
// and passed to components; there is no process-wide cached config.
package config

// Config represents the full ingot configuration
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Artifacts     ArtifactsConfig     `mapstructure:"artifacts"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Validation    ValidationConfig    `mapstructure:"validation"`
	Quarantine    QuarantineConfig    `mapstructure:"quarantine"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Fetch         FetchConfig         `mapstructure:"fetch"`
	Sources       []SourceConfig      `mapstructure:"sources"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ArtifactsConfig configures where run artifacts are written.
// Manifests, quarantine batches, contracts, and observability reports each
// get a subdirectory under Root.
type ArtifactsConfig struct {
	Root string `mapstructure:"root"`
}

// PipelineConfig configures run execution
type PipelineConfig struct {
	Workers              int `mapstructure:"workers"`               // concurrent runs (default: 2)
	PollIntervalSeconds  int `mapstructure:"poll_interval_seconds"` // queue poll cadence (default: 5)
	DispatchPerMinute    int `mapstructure:"dispatch_per_minute"`   // run-start rate limit (default: 30)
	LandingRetryAttempts int `mapstructure:"landing_retry_attempts"`
}

// ValidationConfig configures the validation engine thresholds
type ValidationConfig struct {
	MinRows                int     `mapstructure:"min_rows"`
	MaxRows                int     `mapstructure:"max_rows"`                 // 0 = unbounded
	NullRateThreshold      float64 `mapstructure:"null_rate_threshold"`      // default: 0.05
	DuplicateRateThreshold float64 `mapstructure:"duplicate_rate_threshold"` // default: 0.01
	DriftWarnRatio         float64 `mapstructure:"drift_warn_ratio"`         // default: 0.3
	DriftCriticalRatio     float64 `mapstructure:"drift_critical_ratio"`     // 0 = never escalate
	SampleCap              int     `mapstructure:"sample_cap"`               // violating values kept per rule (default: 10)
}

// QuarantineConfig configures triage behaviour
type QuarantineConfig struct {
	CriticalFields     []string `mapstructure:"critical_fields"`      // fields that escalate severity when present
	SizeThresholdBytes int      `mapstructure:"size_threshold_bytes"` // record size that escalates severity
	MinPopulatedFields int      `mapstructure:"min_populated_fields"` // required for auto-remediation (default: 3)
}

// ObservabilityConfig configures pillar scoring inputs
type ObservabilityConfig struct {
	ExpectedCadenceHours float64 `mapstructure:"expected_cadence_hours"` // release cadence (default: 24)
	ExpectedRowCount     int     `mapstructure:"expected_row_count"`     // 0 = skip volume expectation
}

// FetchConfig configures the default discovery/download collaborator
type FetchConfig struct {
	LandingDir        string `mapstructure:"landing_dir"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"` // polite download rate (default: 30)
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
}

// SourceConfig describes one upstream source file to land
type SourceConfig struct {
	Name        string `mapstructure:"name"`
	URL         string `mapstructure:"url"`
	ContentType string `mapstructure:"content_type"`
	Checksum    string `mapstructure:"checksum"` // optional sha256, verified after download
}
