package config

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Loader     LoaderConfig     `yaml:"loader" mapstructure:"loader"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// LoaderConfig configures discovery and parsing.
type LoaderConfig struct {
	Format            string   `yaml:"format" mapstructure:"format"` // hint; empty means detect
	Encodings         []string `yaml:"encodings" mapstructure:"encodings"`
	Workers           int      `yaml:"workers" mapstructure:"workers"`
	DefaultHeaderLine int      `yaml:"default_header_line" mapstructure:"default_header_line"`
}

// ValidationConfig configures the data-quality validator.
type ValidationConfig struct {
	VoltageMin          float64        `yaml:"voltage_min" mapstructure:"voltage_min"`
	VoltageMax          float64        `yaml:"voltage_max" mapstructure:"voltage_max"`
	CurrentMin          float64        `yaml:"current_min" mapstructure:"current_min"`
	CurrentMax          float64        `yaml:"current_max" mapstructure:"current_max"`
	TemperatureMin      float64        `yaml:"temperature_min" mapstructure:"temperature_min"`
	TemperatureMax      float64        `yaml:"temperature_max" mapstructure:"temperature_max"`
	GapThreshold        time.Duration  `yaml:"gap_threshold" mapstructure:"gap_threshold"`
	OutlierThreshold    float64        `yaml:"outlier_threshold" mapstructure:"outlier_threshold"`
	VoltageViolationPct float64        `yaml:"voltage_violation_pct" mapstructure:"voltage_violation_pct"`
	ValidScore          float64        `yaml:"valid_score" mapstructure:"valid_score"`
	Weights             QualityWeights `yaml:"weights" mapstructure:"weights"`
}

// QualityWeights sets the contribution of each component to the quality score.
type QualityWeights struct {
	ColumnCompleteness  float64 `yaml:"column_completeness" mapstructure:"column_completeness"`
	AverageCompleteness float64 `yaml:"average_completeness" mapstructure:"average_completeness"`
	Voltage             float64 `yaml:"voltage" mapstructure:"voltage"`
	Temporal            float64 `yaml:"temporal" mapstructure:"temporal"`
	Outliers            float64 `yaml:"outliers" mapstructure:"outliers"`
}

// AnalysisConfig configures the derived-metrics analyzer.
type AnalysisConfig struct {
	RestCurrent       float64 `yaml:"rest_current" mapstructure:"rest_current"`
	MinCyclePoints    int     `yaml:"min_cycle_points" mapstructure:"min_cycle_points"`
	MaxReportedCycles int     `yaml:"max_reported_cycles" mapstructure:"max_reported_cycles"`
	ZScore            float64 `yaml:"zscore" mapstructure:"zscore"`
	IQRMultiplier     float64 `yaml:"iqr_multiplier" mapstructure:"iqr_multiplier"`
	JumpSigma         float64 `yaml:"jump_sigma" mapstructure:"jump_sigma"`
	GapMultiplier     float64 `yaml:"gap_multiplier" mapstructure:"gap_multiplier"`
	HistogramBins     int     `yaml:"histogram_bins" mapstructure:"histogram_bins"`
	MaxSampleIndices  int     `yaml:"max_sample_indices" mapstructure:"max_sample_indices"`
}

// ExportConfig configures output files.
type ExportConfig struct {
	Format      string `yaml:"format" mapstructure:"format"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	Table       string `yaml:"table" mapstructure:"table"` // sqlite and postgres targets
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
}

// StoreConfig configures the run history store.
type StoreConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres or none
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BatchConfig configures multi-root processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("loader.format", "")
	v.SetDefault("loader.encodings", []string{"utf-8", "cp949", "euc-kr", "latin-1"})
	v.SetDefault("loader.workers", 1)
	v.SetDefault("loader.default_header_line", 2)
	v.SetDefault("validation.voltage_min", 2.5)
	v.SetDefault("validation.voltage_max", 4.5)
	v.SetDefault("validation.current_min", -10.0)
	v.SetDefault("validation.current_max", 10.0)
	v.SetDefault("validation.temperature_min", -20.0)
	v.SetDefault("validation.temperature_max", 80.0)
	v.SetDefault("validation.gap_threshold", time.Hour)
	v.SetDefault("validation.outlier_threshold", 3.0)
	v.SetDefault("validation.voltage_violation_pct", 1.0)
	v.SetDefault("validation.valid_score", 70.0)
	v.SetDefault("validation.weights.column_completeness", 0.3)
	v.SetDefault("validation.weights.average_completeness", 0.3)
	v.SetDefault("validation.weights.voltage", 0.2)
	v.SetDefault("validation.weights.temporal", 0.1)
	v.SetDefault("validation.weights.outliers", 0.1)
	v.SetDefault("analysis.rest_current", 0.01)
	v.SetDefault("analysis.min_cycle_points", 10)
	v.SetDefault("analysis.max_reported_cycles", 10)
	v.SetDefault("analysis.zscore", 3.0)
	v.SetDefault("analysis.iqr_multiplier", 1.5)
	v.SetDefault("analysis.jump_sigma", 3.0)
	v.SetDefault("analysis.gap_multiplier", 10.0)
	v.SetDefault("analysis.histogram_bins", 20)
	v.SetDefault("analysis.max_sample_indices", 10)
	v.SetDefault("export.format", "csv")
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.table", "measurements")
	v.SetDefault("export.postgres_dsn", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "cycler.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("batch.concurrency", 4)
}

// Load reads config.yaml (optional) and CYCLER_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CYCLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Defaults returns the built-in configuration without reading files or env.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(eris.Wrap(err, "config: unmarshal defaults"))
	}
	return &cfg
}

var (
	knownFormats = map[string]bool{"": true, "toyo": true, "toyo1": true, "toyo2": true, "pne": true}
	knownExports = map[string]bool{"csv": true, "parquet": true, "avro": true, "xlsx": true, "sqlite": true, "postgres": true}
	knownStores  = map[string]bool{"sqlite": true, "postgres": true, "none": true}
)

// Validate checks cross-field constraints and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Loader.Workers < 1 {
		errs = append(errs, "loader.workers must be at least 1")
	}
	if c.Loader.DefaultHeaderLine < 0 {
		errs = append(errs, "loader.default_header_line must not be negative")
	}
	if !knownFormats[strings.ToLower(c.Loader.Format)] {
		errs = append(errs, "loader.format must be one of toyo, toyo1, toyo2, pne")
	}

	val := c.Validation
	if val.VoltageMax <= val.VoltageMin {
		errs = append(errs, "validation.voltage_max must exceed validation.voltage_min")
	}
	if val.CurrentMax <= val.CurrentMin {
		errs = append(errs, "validation.current_max must exceed validation.current_min")
	}
	if val.TemperatureMax <= val.TemperatureMin {
		errs = append(errs, "validation.temperature_max must exceed validation.temperature_min")
	}
	if val.GapThreshold <= 0 {
		errs = append(errs, "validation.gap_threshold must be positive")
	}
	if val.OutlierThreshold <= 0 {
		errs = append(errs, "validation.outlier_threshold must be positive")
	}
	if val.ValidScore < 0 || val.ValidScore > 100 {
		errs = append(errs, "validation.valid_score must be between 0 and 100")
	}
	w := val.Weights
	for name, v := range map[string]float64{
		"column_completeness":  w.ColumnCompleteness,
		"average_completeness": w.AverageCompleteness,
		"voltage":              w.Voltage,
		"temporal":             w.Temporal,
		"outliers":             w.Outliers,
	} {
		if v < 0 {
			errs = append(errs, "validation.weights."+name+" must not be negative")
		}
	}
	sum := w.ColumnCompleteness + w.AverageCompleteness + w.Voltage + w.Temporal + w.Outliers
	if math.Abs(sum-1) > 1e-6 {
		errs = append(errs, "validation.weights must sum to 1")
	}

	a := c.Analysis
	if a.MinCyclePoints < 1 {
		errs = append(errs, "analysis.min_cycle_points must be at least 1")
	}
	if a.HistogramBins < 1 {
		errs = append(errs, "analysis.histogram_bins must be at least 1")
	}
	if a.ZScore <= 0 || a.JumpSigma <= 0 || a.IQRMultiplier <= 0 {
		errs = append(errs, "analysis thresholds must be positive")
	}

	if !knownExports[strings.ToLower(c.Export.Format)] {
		errs = append(errs, "export.format must be one of csv, parquet, avro, xlsx, sqlite, postgres")
	}
	if strings.EqualFold(c.Export.Format, "postgres") && c.Export.PostgresDSN == "" {
		errs = append(errs, "export.postgres_dsn is required for postgres export")
	}
	if !knownStores[strings.ToLower(c.Store.Driver)] {
		errs = append(errs, "store.driver must be one of sqlite, postgres, none")
	}
	if !strings.EqualFold(c.Store.Driver, "none") && c.Store.DSN == "" {
		errs = append(errs, "store.dsn is required")
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, "batch.concurrency must be at least 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger configures the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
