package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "", cfg.Loader.Format)
	assert.Equal(t, []string{"utf-8", "cp949", "euc-kr", "latin-1"}, cfg.Loader.Encodings)
	assert.Equal(t, 1, cfg.Loader.Workers)
	assert.Equal(t, 2, cfg.Loader.DefaultHeaderLine)
	assert.InDelta(t, 2.5, cfg.Validation.VoltageMin, 0.001)
	assert.InDelta(t, 4.5, cfg.Validation.VoltageMax, 0.001)
	assert.Equal(t, time.Hour, cfg.Validation.GapThreshold)
	assert.InDelta(t, 3.0, cfg.Validation.OutlierThreshold, 0.001)
	assert.InDelta(t, 70.0, cfg.Validation.ValidScore, 0.001)
	assert.InDelta(t, 0.3, cfg.Validation.Weights.ColumnCompleteness, 0.001)
	assert.InDelta(t, 0.1, cfg.Validation.Weights.Outliers, 0.001)
	assert.InDelta(t, 0.01, cfg.Analysis.RestCurrent, 0.0001)
	assert.Equal(t, 10, cfg.Analysis.MinCyclePoints)
	assert.Equal(t, 20, cfg.Analysis.HistogramBins)
	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, "measurements", cfg.Export.Table)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "cycler.db", cfg.Store.DSN)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: console
loader:
  format: pne
  workers: 4
validation:
  voltage_min: 2.0
  voltage_max: 4.25
  gap_threshold: 30m
export:
  format: parquet
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "pne", cfg.Loader.Format)
	assert.Equal(t, 4, cfg.Loader.Workers)
	assert.InDelta(t, 2.0, cfg.Validation.VoltageMin, 0.001)
	assert.InDelta(t, 4.25, cfg.Validation.VoltageMax, 0.001)
	assert.Equal(t, 30*time.Minute, cfg.Validation.GapThreshold)
	assert.Equal(t, "parquet", cfg.Export.Format)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 3.0, cfg.Analysis.ZScore, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: warn
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("CYCLER_LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("CYCLER_LOADER_WORKERS", "8")
	t.Setenv("CYCLER_VALIDATION_VOLTAGE_MAX", "4.2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Loader.Workers)
	assert.InDelta(t, 4.2, cfg.Validation.VoltageMax, 0.001)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestDefaultsMatchLoad(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, loaded, Defaults())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero workers", func(c *Config) { c.Loader.Workers = 0 }, "loader.workers must be at least 1"},
		{"unknown format hint", func(c *Config) { c.Loader.Format = "arbin" }, "loader.format"},
		{"inverted voltage", func(c *Config) { c.Validation.VoltageMax = 2.0 }, "voltage_max must exceed"},
		{"negative weight", func(c *Config) { c.Validation.Weights.Voltage = -0.2 }, "weights.voltage must not be negative"},
		{"weights off", func(c *Config) { c.Validation.Weights.Temporal = 0.5 }, "weights must sum to 1"},
		{"score range", func(c *Config) { c.Validation.ValidScore = 120 }, "valid_score"},
		{"unknown export", func(c *Config) { c.Export.Format = "hdf5" }, "export.format"},
		{"zero bins", func(c *Config) { c.Analysis.HistogramBins = 0 }, "histogram_bins"},
		{"postgres export without dsn", func(c *Config) { c.Export.Format = "postgres" }, "export.postgres_dsn"},
		{"postgres export", func(c *Config) { c.Export.Format = "postgres"; c.Export.PostgresDSN = "postgres://localhost/cycler" }, ""},
		{"unknown store", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"store without dsn", func(c *Config) { c.Store.DSN = "" }, "store.dsn"},
		{"store disabled", func(c *Config) { c.Store.Driver = "none"; c.Store.DSN = "" }, ""},
		{"zero batch concurrency", func(c *Config) { c.Batch.Concurrency = 0 }, "batch.concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Loader.Workers = 0
	cfg.Validation.TemperatureMax = -50

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loader.workers")
	assert.Contains(t, err.Error(), "temperature_max")
}
