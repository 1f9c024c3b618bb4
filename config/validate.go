package config

import (
	"github.com/veridata/ingot/errors"
)

// Validate checks configuration values for internal consistency.
// Returns the first error found; thresholds out of range are rejected
// rather than silently clamped.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if c.Artifacts.Root == "" {
		return errors.New("artifacts.root must not be empty")
	}
	if c.Pipeline.Workers < 1 {
		return errors.Newf("pipeline.workers must be >= 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.PollIntervalSeconds < 1 {
		return errors.Newf("pipeline.poll_interval_seconds must be >= 1, got %d", c.Pipeline.PollIntervalSeconds)
	}

	if r := c.Validation.NullRateThreshold; r < 0 || r > 1 {
		return errors.Newf("validation.null_rate_threshold must be in [0,1], got %v", r)
	}
	if r := c.Validation.DuplicateRateThreshold; r < 0 || r > 1 {
		return errors.Newf("validation.duplicate_rate_threshold must be in [0,1], got %v", r)
	}
	if c.Validation.DriftWarnRatio < 0 {
		return errors.Newf("validation.drift_warn_ratio must be >= 0, got %v", c.Validation.DriftWarnRatio)
	}
	if cr := c.Validation.DriftCriticalRatio; cr != 0 && cr < c.Validation.DriftWarnRatio {
		return errors.Newf("validation.drift_critical_ratio (%v) must be 0 or >= drift_warn_ratio (%v)",
			cr, c.Validation.DriftWarnRatio)
	}
	if c.Validation.MaxRows != 0 && c.Validation.MaxRows < c.Validation.MinRows {
		return errors.Newf("validation.max_rows (%d) must be 0 or >= min_rows (%d)",
			c.Validation.MaxRows, c.Validation.MinRows)
	}
	if c.Validation.SampleCap < 1 {
		return errors.Newf("validation.sample_cap must be >= 1, got %d", c.Validation.SampleCap)
	}

	if c.Quarantine.MinPopulatedFields < 0 {
		return errors.Newf("quarantine.min_populated_fields must be >= 0, got %d", c.Quarantine.MinPopulatedFields)
	}
	if c.Observability.ExpectedCadenceHours <= 0 {
		return errors.Newf("observability.expected_cadence_hours must be > 0, got %v", c.Observability.ExpectedCadenceHours)
	}
	if c.Fetch.RequestsPerMinute < 1 {
		return errors.Newf("fetch.requests_per_minute must be >= 1, got %d", c.Fetch.RequestsPerMinute)
	}

	for i, s := range c.Sources {
		if s.Name == "" {
			return errors.Newf("sources[%d].name must not be empty", i)
		}
		if s.URL == "" {
			return errors.Newf("sources[%d] (%s): url must not be empty", i, s.Name)
		}
	}

	return nil
}
