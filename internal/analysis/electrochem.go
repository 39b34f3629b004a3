package analysis

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// Electrochem is the electrochemical_behavior result. Sections are nil when
// their input columns are missing.
type Electrochem struct {
	Voltage *VoltageAnalysis `json:"voltage_analysis,omitempty" yaml:"voltage_analysis,omitempty"`
	Current *CurrentAnalysis `json:"current_analysis,omitempty" yaml:"current_analysis,omitempty"`
	Cycles  *CyclePatterns   `json:"cycle_analysis,omitempty" yaml:"cycle_analysis,omitempty"`
	Power   *PowerAnalysis   `json:"power_analysis,omitempty" yaml:"power_analysis,omitempty"`
}

// VoltageAnalysis is the operating range and modal histogram bucket.
type VoltageAnalysis struct {
	MinVoltage       float64    `json:"min_voltage" yaml:"min_voltage"`
	MaxVoltage       float64    `json:"max_voltage" yaml:"max_voltage"`
	VoltageRange     float64    `json:"voltage_range" yaml:"voltage_range"`
	Variability      float64    `json:"voltage_variability" yaml:"voltage_variability"`
	MostCommonRange  [2]float64 `json:"most_common_voltage_range" yaml:"most_common_voltage_range"`
	MostCommonPoints int        `json:"most_common_points" yaml:"most_common_points"`
}

// CurrentAnalysis partitions current by sign. Rest overlaps small charge and
// discharge currents.
type CurrentAnalysis struct {
	MeanChargeCurrent    float64 `json:"mean_charge_current" yaml:"mean_charge_current"`
	MaxChargeCurrent     float64 `json:"max_charge_current" yaml:"max_charge_current"`
	ChargeDurationPct    float64 `json:"charge_duration_pct" yaml:"charge_duration_pct"`
	MeanDischargeCurrent float64 `json:"mean_discharge_current" yaml:"mean_discharge_current"`
	MaxDischargeCurrent  float64 `json:"max_discharge_current" yaml:"max_discharge_current"`
	DischargeDurationPct float64 `json:"discharge_duration_pct" yaml:"discharge_duration_pct"`
	RestDurationPct      float64 `json:"rest_duration_pct" yaml:"rest_duration_pct"`
}

// CyclePatterns summarizes cycles with enough points.
type CyclePatterns struct {
	Cycles                []CycleSummary `json:"individual_cycles" yaml:"individual_cycles"`
	TotalCyclesAnalyzed   int            `json:"total_cycles_analyzed" yaml:"total_cycles_analyzed"`
	AvgCycleDurationMin   *float64       `json:"avg_cycle_duration_min" yaml:"avg_cycle_duration_min"`
	AvgDataPointsPerCycle *float64       `json:"avg_data_points_per_cycle" yaml:"avg_data_points_per_cycle"`
}

// CycleSummary describes one cycle.
type CycleSummary struct {
	Cycle           float64         `json:"cycle_number" yaml:"cycle_number"`
	DataPoints      int             `json:"data_points" yaml:"data_points"`
	DurationMinutes *float64        `json:"duration_minutes" yaml:"duration_minutes"`
	Voltage         *Range          `json:"voltage_range,omitempty" yaml:"voltage_range,omitempty"`
	Profile         *CurrentProfile `json:"current_profile,omitempty" yaml:"current_profile,omitempty"`
}

// Range is a closed interval and its width.
type Range struct {
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Range float64 `json:"range" yaml:"range"`
}

// CurrentProfile is the share of a cycle's points charging, discharging or
// resting.
type CurrentProfile struct {
	ChargePct    float64 `json:"charge_pct" yaml:"charge_pct"`
	DischargePct float64 `json:"discharge_pct" yaml:"discharge_pct"`
	RestPct      float64 `json:"rest_pct" yaml:"rest_pct"`
}

// PowerAnalysis is instantaneous power V x I with missing values as zero.
type PowerAnalysis struct {
	MaxChargePower    float64 `json:"max_charge_power" yaml:"max_charge_power"`
	MaxDischargePower float64 `json:"max_discharge_power" yaml:"max_discharge_power"`
	AveragePower      float64 `json:"average_power" yaml:"average_power"`
	PowerVariability  float64 `json:"power_variability" yaml:"power_variability"`
}

// ElectrochemicalBehavior analyzes the voltage range, current phases,
// per-cycle patterns and power.
func (a *Analyzer) ElectrochemicalBehavior() *model.AnalysisResult {
	f := a.data()
	out := &Electrochem{}

	if volts := present(f, model.ColVoltage); len(volts) > 0 {
		out.Voltage = a.voltageAnalysis(volts)
	}
	if cur := present(f, model.ColCurrent); len(cur) > 0 {
		out.Current = a.currentAnalysis(cur)
	}
	if f.Has(model.ColCycle) && f.Has(model.ColVoltage) {
		out.Cycles = a.cyclePatterns(f)
	}
	if f.Has(model.ColVoltage) && f.Has(model.ColCurrent) && f.Len() > 0 {
		p := power(f)
		out.Power = &PowerAnalysis{
			MaxChargePower:    extreme(p, func(v float64) bool { return v > 0 }, floats.Max),
			MaxDischargePower: extreme(p, func(v float64) bool { return v < 0 }, floats.Min),
			AveragePower:      stat.Mean(p, nil),
		}
		if len(p) > 1 {
			out.Power.PowerVariability = stat.StdDev(p, nil)
		}
	}

	zap.L().Info("electrochemical analysis complete")
	return a.store(model.AnalysisElectrochemical, out, map[string]any{
		"method":      "electrochemical_analysis",
		"data_format": string(a.sd.Format),
	})
}

func (a *Analyzer) voltageAnalysis(volts []float64) *VoltageAnalysis {
	lo, hi := floats.Min(volts), floats.Max(volts)
	va := &VoltageAnalysis{MinVoltage: lo, MaxVoltage: hi, VoltageRange: hi - lo}
	if len(volts) > 1 {
		va.Variability = stat.StdDev(volts, nil)
	}
	edges, counts := Histogram(volts, a.cfg.HistogramBins)
	if len(counts) > 0 {
		i := floats.MaxIdx(counts)
		va.MostCommonRange = [2]float64{edges[i], edges[i+1]}
		va.MostCommonPoints = int(counts[i])
	}
	return va
}

func (a *Analyzer) currentAnalysis(cur []float64) *CurrentAnalysis {
	var chg, dchg []float64
	rest := 0
	for _, v := range cur {
		switch {
		case v > 0:
			chg = append(chg, v)
		case v < 0:
			dchg = append(dchg, v)
		}
		if math.Abs(v) < a.cfg.RestCurrent {
			rest++
		}
	}
	ca := &CurrentAnalysis{
		ChargeDurationPct:    pct(len(chg), len(cur)),
		DischargeDurationPct: pct(len(dchg), len(cur)),
		RestDurationPct:      pct(rest, len(cur)),
	}
	if len(chg) > 0 {
		ca.MeanChargeCurrent = stat.Mean(chg, nil)
		ca.MaxChargeCurrent = floats.Max(chg)
	}
	if len(dchg) > 0 {
		ca.MeanDischargeCurrent = stat.Mean(dchg, nil)
		ca.MaxDischargeCurrent = floats.Min(dchg)
	}
	return ca
}

// cyclePatterns groups rows by cycle number in ascending order. Cycles with
// fewer than MinCyclePoints rows are skipped; at most MaxReportedCycles are
// listed but all qualifying cycles count toward the averages.
func (a *Analyzer) cyclePatterns(f *frame.Frame) *CyclePatterns {
	groups := groupRows(f.Floats(model.ColCycle))
	volts := f.Floats(model.ColVoltage)
	cur := f.Floats(model.ColCurrent)
	ts := f.Times(model.ColDatetime)

	var summaries []CycleSummary
	for _, g := range groups {
		if len(g.rows) < a.cfg.MinCyclePoints {
			continue
		}
		cs := CycleSummary{Cycle: g.key, DataPoints: len(g.rows)}
		if ts != nil {
			if d, ok := timeSpan(ts, g.rows); ok {
				m := d.Minutes()
				cs.DurationMinutes = &m
			}
		}
		if v := pick(volts, g.rows); len(v) > 0 {
			lo, hi := floats.Min(v), floats.Max(v)
			cs.Voltage = &Range{Min: lo, Max: hi, Range: hi - lo}
		}
		if c := pick(cur, g.rows); len(c) > 0 {
			var pos, neg, zero int
			for _, v := range c {
				switch {
				case v > a.cfg.RestCurrent:
					pos++
				case v < -a.cfg.RestCurrent:
					neg++
				default:
					zero++
				}
			}
			cs.Profile = &CurrentProfile{
				ChargePct:    pct(pos, len(c)),
				DischargePct: pct(neg, len(c)),
				RestPct:      pct(zero, len(c)),
			}
		}
		summaries = append(summaries, cs)
	}

	cp := &CyclePatterns{TotalCyclesAnalyzed: len(summaries), Cycles: []CycleSummary{}}
	if len(summaries) == 0 {
		return cp
	}
	limit := len(summaries)
	if a.cfg.MaxReportedCycles > 0 && limit > a.cfg.MaxReportedCycles {
		limit = a.cfg.MaxReportedCycles
	}
	cp.Cycles = summaries[:limit]

	var durations, points []float64
	for _, s := range summaries {
		points = append(points, float64(s.DataPoints))
		if s.DurationMinutes != nil {
			durations = append(durations, *s.DurationMinutes)
		}
	}
	avgPoints := stat.Mean(points, nil)
	cp.AvgDataPointsPerCycle = &avgPoints
	if len(durations) > 0 {
		avgDur := stat.Mean(durations, nil)
		cp.AvgCycleDurationMin = &avgDur
	}
	return cp
}

type rowGroup struct {
	key  float64
	rows []int
}

// groupRows groups row numbers by key, ascending, skipping NaN keys.
func groupRows(keys []float64) []rowGroup {
	idx := make(map[float64]int)
	var groups []rowGroup
	for i, k := range keys {
		if math.IsNaN(k) {
			continue
		}
		j, ok := idx[k]
		if !ok {
			j = len(groups)
			idx[k] = j
			groups = append(groups, rowGroup{key: k})
		}
		groups[j].rows = append(groups[j].rows, i)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups
}

// pick returns the non-NaN values of vals at rows.
func pick(vals []float64, rows []int) []float64 {
	if vals == nil {
		return nil
	}
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v := vals[r]; !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// timeSpan is the distance between the earliest and latest valid timestamp
// at rows. It needs at least two valid timestamps.
func timeSpan(ts []time.Time, rows []int) (time.Duration, bool) {
	var lo, hi time.Time
	n := 0
	for _, r := range rows {
		t := ts[r]
		if t.IsZero() {
			continue
		}
		n++
		if lo.IsZero() || t.Before(lo) {
			lo = t
		}
		if hi.IsZero() || t.After(hi) {
			hi = t
		}
	}
	if n < 2 {
		return 0, false
	}
	return hi.Sub(lo), true
}

func power(f *frame.Frame) []float64 {
	v := fillZero(f.Floats(model.ColVoltage))
	i := fillZero(f.Floats(model.ColCurrent))
	p := make([]float64, len(v))
	for k := range p {
		p[k] = v[k] * i[k]
	}
	return p
}

// extreme applies agg to the values matching keep, or returns 0 when none do.
func extreme(vals []float64, keep func(float64) bool, agg func([]float64) float64) float64 {
	var sel []float64
	for _, v := range vals {
		if keep(v) {
			sel = append(sel, v)
		}
	}
	if len(sel) == 0 {
		return 0
	}
	return agg(sel)
}
