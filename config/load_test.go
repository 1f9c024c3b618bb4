package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ingot.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "ingot.db", cfg.Database.Path)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 0.05, cfg.Validation.NullRateThreshold)
	assert.Equal(t, 0.3, cfg.Validation.DriftWarnRatio)
	assert.Equal(t, 0.0, cfg.Validation.DriftCriticalRatio)
	assert.Equal(t, 10, cfg.Validation.SampleCap)
	assert.Equal(t, 3, cfg.Quarantine.MinPopulatedFields)
	assert.Equal(t, 24.0, cfg.Observability.ExpectedCadenceHours)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
[database]
path = "test.db"

[validation]
null_rate_threshold = 0.1
drift_warn_ratio = 0.2
drift_critical_ratio = 0.8

[[sources]]
name = "payments.csv"
url = "https://example.gov/payments.csv"
content_type = "text/csv"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "test.db", cfg.Database.Path)
	assert.Equal(t, 0.1, cfg.Validation.NullRateThreshold)
	assert.Equal(t, 0.8, cfg.Validation.DriftCriticalRatio)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "payments.csv", cfg.Sources[0].Name)
	// Defaults still apply to unset sections
	assert.Equal(t, 2, cfg.Pipeline.Workers)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	cfg.Validation.NullRateThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg.Validation.NullRateThreshold = 0.05
	cfg.Validation.DriftCriticalRatio = 0.1 // below warn ratio, nonzero
	assert.Error(t, cfg.Validate())

	cfg.Validation.DriftCriticalRatio = 0
	cfg.Pipeline.Workers = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnnamedSource(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	cfg.Sources = []SourceConfig{{URL: "https://example.gov/data.csv"}}
	assert.Error(t, cfg.Validate())
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfigFile(t, `
[database]
path = "before.db"
`)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Stop()
	w.debouncePeriod = 50 * time.Millisecond

	reloaded := make(chan *Config, 1)
	w.OnReload(func(c *Config) error {
		select {
		case reloaded <- c:
		default:
		}
		return nil
	})
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte("[database]\npath = \"after.db\"\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "after.db", cfg.Database.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("config watcher did not fire")
	}
}
