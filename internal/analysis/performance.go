package analysis

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/cycler-cli/internal/model"
)

// Capacity column names used by the performance and fade analyses.
const (
	colChgCapacity  = "Chg_Capacity_mAh"
	colDchgCapacity = "Dchg_Capacity_mAh"
	colCapLogMAh    = "Cap_mAh"
	colCondition    = "Condition"
)

// Toyo capacity log Condition codes.
const (
	ConditionCharge    = 1
	ConditionDischarge = 2
)

// Performance is the performance_metrics result.
type Performance struct {
	Capacity    *CapacityMetrics    `json:"capacity_metrics,omitempty" yaml:"capacity_metrics,omitempty"`
	Energy      *EnergyMetrics      `json:"energy_metrics,omitempty" yaml:"energy_metrics,omitempty"`
	Efficiency  *EfficiencyMetrics  `json:"efficiency_metrics,omitempty" yaml:"efficiency_metrics,omitempty"`
	Temperature *TemperatureMetrics `json:"temperature_performance,omitempty" yaml:"temperature_performance,omitempty"`
}

// SeriesStats is mean, sample std and extrema of a series.
type SeriesStats struct {
	Mean float64 `json:"mean" yaml:"mean"`
	Std  float64 `json:"std" yaml:"std"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

// CapacityMetrics describes charge and discharge capacity in mAh.
type CapacityMetrics struct {
	Source    string       `json:"source" yaml:"source"`
	Charge    *SeriesStats `json:"charge_capacity,omitempty" yaml:"charge_capacity,omitempty"`
	Discharge *SeriesStats `json:"discharge_capacity,omitempty" yaml:"discharge_capacity,omitempty"`
}

// EnergyMetrics describes instantaneous power in W.
type EnergyMetrics struct {
	MeanPowerW  float64 `json:"mean_power_W" yaml:"mean_power_W"`
	MaxPowerW   float64 `json:"max_power_W" yaml:"max_power_W"`
	MinPowerW   float64 `json:"min_power_W" yaml:"min_power_W"`
	PowerRangeW float64 `json:"power_range_W" yaml:"power_range_W"`
}

// EfficiencyMetrics is coulombic efficiency in percent.
type EfficiencyMetrics struct {
	Coulombic *SeriesStats `json:"coulombic_efficiency,omitempty" yaml:"coulombic_efficiency,omitempty"`
	Pairs     int          `json:"pairs" yaml:"pairs"`
}

// TemperatureMetrics describes temperature level and stability.
type TemperatureMetrics struct {
	Stats          SeriesStats `json:"temperature_statistics" yaml:"temperature_statistics"`
	RangeC         float64     `json:"range_C" yaml:"range_C"`
	MeanVariationC *float64    `json:"mean_variation_C,omitempty" yaml:"mean_variation_C,omitempty"`
	MaxVariationC  *float64    `json:"max_variation_C,omitempty" yaml:"max_variation_C,omitempty"`
	StabilityScore *float64    `json:"stability_score,omitempty" yaml:"stability_score,omitempty"`
}

// PerformanceMetrics computes capacity, power, coulombic efficiency and
// temperature metrics. Capacity comes from the table's charge and discharge
// capacity columns, or from the capacity log when the table has none.
func (a *Analyzer) PerformanceMetrics() *model.AnalysisResult {
	f := a.data()
	out := &Performance{}

	chg, dchg, source := a.capacitySeries()
	if chg != nil || dchg != nil {
		out.Capacity = &CapacityMetrics{Source: source}
		if len(chg) > 0 {
			s := seriesStats(chg)
			out.Capacity.Charge = &s
		}
		if len(dchg) > 0 {
			s := seriesStats(dchg)
			out.Capacity.Discharge = &s
		}
		if eff, ok := CoulombicEfficiency(chg, dchg); ok {
			s := seriesStats(eff)
			out.Efficiency = &EfficiencyMetrics{Coulombic: &s, Pairs: len(eff)}
		}
	}

	if f.Has(model.ColVoltage) && f.Has(model.ColCurrent) && f.Has(model.ColDatetime) && f.Len() > 0 {
		p := power(f)
		lo, hi := floats.Min(p), floats.Max(p)
		out.Energy = &EnergyMetrics{
			MeanPowerW:  stat.Mean(p, nil),
			MaxPowerW:   hi,
			MinPowerW:   lo,
			PowerRangeW: hi - lo,
		}
	}

	if temps := present(f, model.ColTemperature); len(temps) > 0 {
		out.Temperature = temperatureMetrics(temps)
	}

	zap.L().Info("performance metrics complete", zap.String("capacity_source", source))
	return a.store(model.AnalysisPerformance, out, map[string]any{
		"method": "battery_performance_calculation",
	})
}

// capacitySeries returns charge and discharge capacities in mAh. A nil slice
// means the source has no such column.
func (a *Analyzer) capacitySeries() (chg, dchg []float64, source string) {
	f := a.data()
	if f.Has(colChgCapacity) || f.Has(colDchgCapacity) {
		return present(f, colChgCapacity), present(f, colDchgCapacity), "data"
	}
	c := a.sd.Capacity
	if c == nil || !c.Has(colCapLogMAh) || !c.Has(colCondition) {
		return nil, nil, ""
	}
	cond := c.Floats(colCondition)
	caps := c.Floats(colCapLogMAh)
	chg, dchg = []float64{}, []float64{}
	for i, v := range caps {
		if math.IsNaN(v) {
			continue
		}
		switch int(cond[i]) {
		case ConditionCharge:
			chg = append(chg, v)
		case ConditionDischarge:
			dchg = append(dchg, v)
		}
	}
	return chg, dchg, "capacity_log"
}

// CoulombicEfficiency pairs charge and discharge capacities by position and
// returns discharge/charge x 100. Pairing requires equal lengths; pairs with
// zero charge are skipped.
func CoulombicEfficiency(chg, dchg []float64) ([]float64, bool) {
	if len(chg) == 0 || len(chg) != len(dchg) {
		return nil, false
	}
	out := make([]float64, 0, len(chg))
	for i := range chg {
		if chg[i] == 0 {
			continue
		}
		out = append(out, dchg[i]/chg[i]*100)
	}
	return out, len(out) > 0
}

func seriesStats(vals []float64) SeriesStats {
	s := SeriesStats{
		Mean: stat.Mean(vals, nil),
		Min:  floats.Min(vals),
		Max:  floats.Max(vals),
	}
	if len(vals) > 1 {
		s.Std = stat.StdDev(vals, nil)
	}
	return s
}

func temperatureMetrics(temps []float64) *TemperatureMetrics {
	tm := &TemperatureMetrics{Stats: seriesStats(temps)}
	tm.RangeC = tm.Stats.Max - tm.Stats.Min
	if len(temps) < 2 {
		return tm
	}
	diffs := make([]float64, len(temps)-1)
	for i := 1; i < len(temps); i++ {
		diffs[i-1] = math.Abs(temps[i] - temps[i-1])
	}
	mean, maxDiff := stat.Mean(diffs, nil), floats.Max(diffs)
	score := math.Max(0, 100-mean*10)
	tm.MeanVariationC, tm.MaxVariationC, tm.StabilityScore = &mean, &maxDiff, &score
	return tm
}
