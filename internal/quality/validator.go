// Package quality scores the completeness, plausibility and temporal
// consistency of a standardized table.
package quality

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/cycler-cli/internal/config"
	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// Metric keys reported in ValidationResult.Metrics.
const (
	MetricColumnCompleteness  = "column_completeness"
	MetricAvgCompleteness     = "avg_completeness"
	MetricVoltageCompliance   = "voltage_range_compliance"
	MetricCurrentCompliance   = "current_range_compliance"
	MetricTemperatureCompl    = "temperature_range_compliance"
	MetricTemporalConsistency = "temporal_consistency"
	MetricOutlierRate         = "outlier_rate"
)

// requiredColumns are the columns without which a table cannot be analyzed.
var requiredColumns = []string{model.ColDatetime, model.ColVoltage, model.ColCurrent}

// outlierColumns are z-scored for the outlier rate.
var outlierColumns = []string{model.ColVoltage, model.ColCurrent, model.ColTemperature}

const (
	requiredCompletenessMin = 90.0
	columnCompletenessMin   = 50.0
	outlierWarnFraction     = 0.05
	imputationBelow         = 95.0
	outlierRateRecommend    = 2.0
	manyWarnings            = 5
)

// Validator runs every data-quality check against a table. All checks run
// regardless of earlier failures so the issue list is complete.
type Validator struct {
	cfg config.ValidationConfig
}

// New creates a Validator.
func New(cfg config.ValidationConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate checks the canonical table of sd.
func (v *Validator) Validate(sd *model.StandardizedData) *model.ValidationResult {
	if sd == nil {
		return v.ValidateFrame(nil)
	}
	return v.ValidateFrame(sd.Data)
}

// ValidateFrame checks a canonical table. The quality score is always in
// [0, 100]; an empty table scores 0 and is invalid.
func (v *Validator) ValidateFrame(f *frame.Frame) *model.ValidationResult {
	res := &model.ValidationResult{
		Issues:          []string{},
		Warnings:        []string{},
		Recommendations: []string{},
		Metrics:         make(map[string]float64),
	}
	if f == nil || f.Len() == 0 {
		res.Issues = append(res.Issues, "Dataset is empty")
		zap.L().Warn("validation of empty dataset")
		return res
	}

	c := &checks{cfg: v.cfg, f: f, res: res}
	c.requiredColumns()
	c.completeness()
	c.voltageRange()
	c.rangeWarning(model.ColCurrent, "Current", "A", v.cfg.CurrentMin, v.cfg.CurrentMax, MetricCurrentCompliance)
	c.rangeWarning(model.ColTemperature, "Temperature", "C", v.cfg.TemperatureMin, v.cfg.TemperatureMax, MetricTemperatureCompl)
	c.temporal()
	c.outliers()
	c.recommend()

	res.QualityScore = v.score(res.Metrics)
	res.IsValid = len(res.Issues) == 0 && res.QualityScore >= v.cfg.ValidScore

	zap.L().Info("validation complete",
		zap.Bool("valid", res.IsValid),
		zap.Float64("score", res.QualityScore),
		zap.Int("issues", len(res.Issues)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res
}

// score combines the metrics with the configured weights. Voltage and
// temporal compliance count as perfect when they could not be measured.
func (v *Validator) score(m map[string]float64) float64 {
	w := v.cfg.Weights
	metric := func(key string, missing float64) float64 {
		if val, ok := m[key]; ok {
			return val
		}
		return missing
	}
	s := w.ColumnCompleteness*metric(MetricColumnCompleteness, 0) +
		w.AverageCompleteness*metric(MetricAvgCompleteness, 0) +
		w.Voltage*metric(MetricVoltageCompliance, 100) +
		w.Temporal*metric(MetricTemporalConsistency, 100) +
		w.Outliers*math.Max(0, 100-metric(MetricOutlierRate, 0)*10)
	return math.Max(0, math.Min(100, s))
}

type checks struct {
	cfg config.ValidationConfig
	f   *frame.Frame
	res *model.ValidationResult
}

func (c *checks) issue(format string, args ...any) {
	c.res.Issues = append(c.res.Issues, fmt.Sprintf(format, args...))
}

func (c *checks) warn(format string, args ...any) {
	c.res.Warnings = append(c.res.Warnings, fmt.Sprintf(format, args...))
}

func (c *checks) requiredColumns() {
	present := 0
	for _, col := range requiredColumns {
		if c.f.Has(col) {
			present++
			continue
		}
		c.issue("Missing required column: %s", col)
	}
	c.res.Metrics[MetricColumnCompleteness] = float64(present) / float64(len(requiredColumns)) * 100
}

func (c *checks) completeness() {
	n := float64(c.f.Len())
	required := make(map[string]bool, len(requiredColumns))
	for _, col := range requiredColumns {
		required[col] = true
	}

	scores := make([]float64, 0, c.f.Width())
	for _, col := range c.f.Columns() {
		pct := (n - float64(col.NullCount())) / n * 100
		scores = append(scores, pct)
		switch {
		case required[col.Name] && pct < requiredCompletenessMin:
			c.issue("Column '%s' has %.1f%% missing data", col.Name, 100-pct)
		case pct < columnCompletenessMin:
			c.warn("Column '%s' has %.1f%% missing data", col.Name, 100-pct)
		}
	}
	if len(scores) > 0 {
		c.res.Metrics[MetricAvgCompleteness] = stat.Mean(scores, nil)
	}
}

func (c *checks) voltageRange() {
	vals := present(c.f.Floats(model.ColVoltage))
	if vals == nil {
		return
	}
	if len(vals) == 0 {
		c.res.Metrics[MetricVoltageCompliance] = 0
		return
	}
	out := countOutside(vals, c.cfg.VoltageMin, c.cfg.VoltageMax)
	pct := float64(out) / float64(len(vals)) * 100
	if out > 0 {
		if pct > c.cfg.VoltageViolationPct {
			c.issue("Voltage out of range (%g-%gV): %.1f%%", c.cfg.VoltageMin, c.cfg.VoltageMax, pct)
		} else {
			c.warn("Voltage out of range: %d points (%.2f%%)", out, pct)
		}
	}
	c.res.Metrics[MetricVoltageCompliance] = 100 - pct
}

// rangeWarning reports values outside [lo, hi] as a warning only.
func (c *checks) rangeWarning(col, label, unit string, lo, hi float64, metric string) {
	vals := present(c.f.Floats(col))
	if len(vals) == 0 {
		return
	}
	out := countOutside(vals, lo, hi)
	pct := float64(out) / float64(len(vals)) * 100
	if out > 0 {
		c.warn("%s out of range (%g-%g%s): %d points (%.2f%%)", label, lo, hi, unit, out, pct)
	}
	c.res.Metrics[metric] = 100 - pct
}

func (c *checks) temporal() {
	if !c.f.Has(model.ColDatetime) {
		return
	}
	ts := c.f.Times(model.ColDatetime)
	if ts == nil {
		c.warn("Invalid datetime values: %d", c.f.Len())
		return
	}

	valid := make([]time.Time, 0, len(ts))
	backwards := 0
	for _, t := range ts {
		if t.IsZero() {
			continue
		}
		if n := len(valid); n > 0 && t.Before(valid[n-1]) {
			backwards++
		}
		valid = append(valid, t)
	}
	if nulls := len(ts) - len(valid); nulls > 0 {
		c.warn("Invalid datetime values: %d", nulls)
	}
	if backwards > 0 {
		c.warn("Timestamps out of order: %d", backwards)
	}
	if len(valid) < 2 {
		return
	}

	sort.Slice(valid, func(i, j int) bool { return valid[i].Before(valid[j]) })
	gaps, dups := 0, 0
	for i := 1; i < len(valid); i++ {
		d := valid[i].Sub(valid[i-1])
		if d > c.cfg.GapThreshold {
			gaps++
		}
		if d == 0 {
			dups++
		}
	}
	if gaps > 0 {
		c.warn("Large time gaps detected: %d instances", gaps)
	}
	if dups > 0 {
		c.warn("Duplicate timestamps: %d", dups)
	}
	c.res.Metrics[MetricTemporalConsistency] = math.Max(0, 100-float64(gaps+dups)/float64(len(valid))*100)
}

func (c *checks) outliers() {
	var counts []float64
	for _, col := range outlierColumns {
		vals := present(c.f.Floats(col))
		if len(vals) == 0 {
			continue
		}
		n := ZScoreOutliers(vals, c.cfg.OutlierThreshold)
		counts = append(counts, float64(n))
		if float64(n) > float64(len(vals))*outlierWarnFraction {
			c.warn("High outlier count in %s: %d (%.1f%%)", col, n, float64(n)/float64(len(vals))*100)
		}
	}
	rate := 0.0
	if len(counts) > 0 {
		rate = stat.Mean(counts, nil) / float64(c.f.Len()) * 100
	}
	c.res.Metrics[MetricOutlierRate] = rate
}

func (c *checks) recommend() {
	m := c.res.Metrics
	if m[MetricAvgCompleteness] < imputationBelow {
		c.res.Recommendations = append(c.res.Recommendations, "Consider data imputation or filtering for missing values")
	}
	if m[MetricOutlierRate] > outlierRateRecommend {
		c.res.Recommendations = append(c.res.Recommendations, "Investigate and potentially filter outliers")
	}
	if len(c.res.Warnings) > manyWarnings {
		c.res.Recommendations = append(c.res.Recommendations, "Multiple data quality issues detected, recommend thorough data cleaning")
	}
}

// ZScoreOutliers counts values more than threshold population standard
// deviations from the mean. A constant series has no outliers.
func ZScoreOutliers(vals []float64, threshold float64) int {
	if len(vals) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(vals, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	n := 0
	for _, v := range vals {
		if math.Abs(v-mean)/std > threshold {
			n++
		}
	}
	return n
}

// present drops NaNs. It returns nil for a nil input so callers can tell a
// missing column from an all-null one.
func present(vals []float64) []float64 {
	if vals == nil {
		return nil
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func countOutside(vals []float64, lo, hi float64) int {
	n := 0
	for _, v := range vals {
		if v < lo || v > hi {
			n++
		}
	}
	return n
}
