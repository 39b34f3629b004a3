package analysis

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cycler-cli/internal/config"
	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func cfg() config.AnalysisConfig { return config.Defaults().Analysis }

func times(n int, step time.Duration) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = t0.Add(time.Duration(i) * step)
	}
	return out
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func mustFrame(t *testing.T, cols ...*frame.Column) *frame.Frame {
	t.Helper()
	f, err := frame.FromColumns(cols...)
	require.NoError(t, err)
	return f
}

// cyclingFrame has two full cycles of 15 rows (10 charging, 5 discharging)
// and a short third cycle of 3 resting rows.
func cyclingFrame(t *testing.T) *frame.Frame {
	t.Helper()
	var cycle, cur []float64
	for c := 1; c <= 2; c++ {
		for i := 0; i < 15; i++ {
			cycle = append(cycle, float64(c))
			if i < 10 {
				cur = append(cur, 0.5)
			} else {
				cur = append(cur, -0.5)
			}
		}
	}
	for i := 0; i < 3; i++ {
		cycle = append(cycle, 3)
		cur = append(cur, 0)
	}
	n := len(cycle)
	return mustFrame(t,
		frame.NewTimeColumn(model.ColDatetime, times(n, 10*time.Second)),
		frame.NewFloatColumn(model.ColVoltage, fill(n, 3.7)),
		frame.NewFloatColumn(model.ColCurrent, cur),
		frame.NewFloatColumn(model.ColTemperature, fill(n, 25)),
		frame.NewFloatColumn(model.ColCycle, cycle),
	)
}

func TestDescribe(t *testing.T) {
	d := Describe([]float64{4, 1, 3, 2})
	assert.Equal(t, 4, d.Count)
	assert.InDelta(t, 2.5, d.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3), d.Std, 1e-12)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 4.0, d.Max)
	assert.Equal(t, 1.0, d.Q25)
	assert.Equal(t, 2.0, d.Median)
	assert.Equal(t, 3.0, d.Q75)
	assert.InDelta(t, 0, d.Skewness, 1e-12)

	assert.Equal(t, Descriptive{}, Describe(nil))
	single := Describe([]float64{7})
	assert.Equal(t, 7.0, single.Median)
	assert.Zero(t, single.Std)
	assert.Zero(t, single.Skewness)
}

func TestBasicStatistics(t *testing.T) {
	n := 4
	f := mustFrame(t,
		frame.NewTimeColumn(model.ColDatetime, times(n, 30*time.Minute)),
		frame.NewFloatColumn(model.ColVoltage, []float64{3.0, 3.1, 3.2, 3.3}),
		frame.NewFloatColumn(model.ColCurrent, []float64{1, 2, 3, math.NaN()}),
		frame.NewFloatColumn(model.ColCycle, []float64{1, 1, 2, 2}),
		frame.NewStringColumn(model.ColChannel, []string{"1", "1", "1", "1"}),
	)
	a := New(&model.StandardizedData{Data: f, Format: model.FormatToyo}, cfg())
	res := a.BasicStatistics()
	assert.Equal(t, model.AnalysisBasicStatistics, res.AnalysisType)

	bs, ok := res.Results.(*BasicStats)
	require.True(t, ok)
	assert.Equal(t, 4, bs.General.TotalRecords)
	require.NotNil(t, bs.General.TimeSpanHours)
	assert.InDelta(t, 1.5, *bs.General.TimeSpanHours, 1e-9)
	require.NotNil(t, bs.General.UniqueCycles)
	assert.Equal(t, 2, *bs.General.UniqueCycles)

	assert.Contains(t, bs.Descriptive, model.ColVoltage)
	assert.Equal(t, 3, bs.Descriptive[model.ColCurrent].Count)
	assert.NotContains(t, bs.Descriptive, model.ColTemperature)

	require.NotNil(t, bs.Correlations)
	assert.InDelta(t, 1, bs.Correlations[model.ColVoltage][model.ColCurrent], 1e-9)
	assert.Equal(t, bs.Correlations[model.ColVoltage][model.ColCurrent], bs.Correlations[model.ColCurrent][model.ColVoltage])

	stored, ok := a.Result(model.AnalysisBasicStatistics)
	require.True(t, ok)
	assert.Same(t, res, stored)
	assert.Equal(t, []string{model.ColVoltage, model.ColCurrent, model.ColCycle}, res.Metadata["variables_analyzed"])
}

func TestElectrochemicalBehavior(t *testing.T) {
	a := New(&model.StandardizedData{Data: cyclingFrame(t)}, cfg())
	ec, ok := a.ElectrochemicalBehavior().Results.(*Electrochem)
	require.True(t, ok)

	require.NotNil(t, ec.Voltage)
	assert.Equal(t, 3.7, ec.Voltage.MinVoltage)
	assert.Zero(t, ec.Voltage.VoltageRange)
	assert.Equal(t, 33, ec.Voltage.MostCommonPoints)
	assert.LessOrEqual(t, ec.Voltage.MostCommonRange[0], 3.7)
	assert.GreaterOrEqual(t, ec.Voltage.MostCommonRange[1], 3.7)

	require.NotNil(t, ec.Current)
	assert.InDelta(t, 20.0/33*100, ec.Current.ChargeDurationPct, 1e-9)
	assert.InDelta(t, 10.0/33*100, ec.Current.DischargeDurationPct, 1e-9)
	assert.InDelta(t, 3.0/33*100, ec.Current.RestDurationPct, 1e-9)
	assert.Equal(t, 0.5, ec.Current.MaxChargeCurrent)
	assert.Equal(t, -0.5, ec.Current.MaxDischargeCurrent)

	require.NotNil(t, ec.Cycles)
	assert.Equal(t, 2, ec.Cycles.TotalCyclesAnalyzed, "short cycle skipped")
	require.Len(t, ec.Cycles.Cycles, 2)
	c1 := ec.Cycles.Cycles[0]
	assert.Equal(t, 1.0, c1.Cycle)
	assert.Equal(t, 15, c1.DataPoints)
	require.NotNil(t, c1.DurationMinutes)
	assert.InDelta(t, 140.0/60, *c1.DurationMinutes, 1e-9)
	require.NotNil(t, c1.Profile)
	assert.InDelta(t, 200.0/3, c1.Profile.ChargePct, 1e-9)
	assert.InDelta(t, 100.0/3, c1.Profile.DischargePct, 1e-9)
	require.NotNil(t, ec.Cycles.AvgDataPointsPerCycle)
	assert.Equal(t, 15.0, *ec.Cycles.AvgDataPointsPerCycle)

	require.NotNil(t, ec.Power)
	assert.InDelta(t, 1.85, ec.Power.MaxChargePower, 1e-9)
	assert.InDelta(t, -1.85, ec.Power.MaxDischargePower, 1e-9)
}

func TestElectrochemical_ReportedCyclesCapped(t *testing.T) {
	c := cfg()
	c.MinCyclePoints = 1
	c.MaxReportedCycles = 2
	a := New(&model.StandardizedData{Data: cyclingFrame(t)}, c)
	ec := a.ElectrochemicalBehavior().Results.(*Electrochem)
	assert.Equal(t, 3, ec.Cycles.TotalCyclesAnalyzed)
	assert.Len(t, ec.Cycles.Cycles, 2)
}

func TestDetectAnomalies_SingleOutlier(t *testing.T) {
	n := 100
	volts := fill(n, 3.7)
	volts[42] = 4.2
	f := mustFrame(t,
		frame.NewTimeColumn(model.ColDatetime, times(n, time.Second)),
		frame.NewFloatColumn(model.ColVoltage, volts),
	)
	an := New(&model.StandardizedData{Data: f}, cfg()).DetectAnomalies().Results.(*Anomalies)

	o := an.Outliers[model.ColVoltage]
	assert.Equal(t, 1, o.ZScoreOutliers)
	assert.Equal(t, 1, o.IQROutliers)
	assert.InDelta(t, 1.0, o.ZScorePct, 1e-9)
	assert.Equal(t, []int{42}, o.Indices)
	assert.NotContains(t, an.Outliers, model.ColCurrent)

	require.NotNil(t, an.VoltageJumps)
	assert.Equal(t, 2, an.VoltageJumps.JumpsDetected)
	assert.Equal(t, []int{42, 43}, an.VoltageJumps.Indices)
	assert.InDelta(t, 0.5, an.VoltageJumps.MaxJumpV, 1e-9)

	require.NotNil(t, an.Temporal)
	assert.Equal(t, 99, an.Temporal.TotalGaps)
	assert.Zero(t, an.Temporal.LargeGaps)
}

func TestDetectAnomalies_ConstantSeries(t *testing.T) {
	f := mustFrame(t, frame.NewFloatColumn(model.ColCurrent, fill(20, 1)))
	an := New(&model.StandardizedData{Data: f}, cfg()).DetectAnomalies().Results.(*Anomalies)
	assert.Zero(t, an.Outliers[model.ColCurrent].ZScoreOutliers)
	assert.Zero(t, an.Outliers[model.ColCurrent].IQROutliers)
	assert.Nil(t, an.VoltageJumps)
	assert.Nil(t, an.Temporal)
}

func TestDetectAnomalies_LargeGap(t *testing.T) {
	ts := times(10, time.Minute)
	ts[9] = ts[8].Add(3 * time.Hour)
	f := mustFrame(t, frame.NewTimeColumn(model.ColDatetime, ts))
	an := New(&model.StandardizedData{Data: f}, cfg()).DetectAnomalies().Results.(*Anomalies)
	assert.Equal(t, 1, an.Temporal.LargeGaps)
	assert.InDelta(t, 1.0, an.Temporal.MedianGapMin, 1e-9)
	assert.InDelta(t, 3.0, an.Temporal.MaxGapHours, 1e-9)
}

func TestCoulombicEfficiency(t *testing.T) {
	tests := []struct {
		name      string
		chg, dchg []float64
		want      []float64
		ok        bool
	}{
		{name: "paired", chg: []float64{100, 100}, dchg: []float64{95, 90}, want: []float64{95, 90}, ok: true},
		{name: "length mismatch", chg: []float64{100}, dchg: []float64{95, 90}},
		{name: "zero charge skipped", chg: []float64{0, 50}, dchg: []float64{1, 25}, want: []float64{50}, ok: true},
		{name: "empty", chg: nil, dchg: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoulombicEfficiency(tt.chg, tt.dchg)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDeltaSlice(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestPerformanceMetrics_DataColumns(t *testing.T) {
	f := mustFrame(t,
		frame.NewTimeColumn(model.ColDatetime, times(3, time.Minute)),
		frame.NewFloatColumn(model.ColVoltage, []float64{4, 4, 4}),
		frame.NewFloatColumn(model.ColCurrent, []float64{1, -1, 0}),
		frame.NewFloatColumn(model.ColTemperature, []float64{25, 26, 25}),
		frame.NewFloatColumn(colChgCapacity, []float64{100, math.NaN(), 100}),
		frame.NewFloatColumn(colDchgCapacity, []float64{95, 90, math.NaN()}),
	)
	perf := New(&model.StandardizedData{Data: f}, cfg()).PerformanceMetrics().Results.(*Performance)

	require.NotNil(t, perf.Capacity)
	assert.Equal(t, "data", perf.Capacity.Source)
	assert.Equal(t, 100.0, perf.Capacity.Charge.Mean)
	assert.Equal(t, 92.5, perf.Capacity.Discharge.Mean)
	require.NotNil(t, perf.Efficiency)
	assert.InDelta(t, 92.5, perf.Efficiency.Coulombic.Mean, 1e-9)

	require.NotNil(t, perf.Energy)
	assert.Equal(t, 4.0, perf.Energy.MaxPowerW)
	assert.Equal(t, -4.0, perf.Energy.MinPowerW)
	assert.Equal(t, 8.0, perf.Energy.PowerRangeW)

	require.NotNil(t, perf.Temperature)
	assert.Equal(t, 1.0, perf.Temperature.RangeC)
	require.NotNil(t, perf.Temperature.StabilityScore)
	assert.InDelta(t, 90, *perf.Temperature.StabilityScore, 1e-9)
}

func toyoCapacity(t *testing.T) *frame.Frame {
	t.Helper()
	return mustFrame(t,
		frame.NewFloatColumn(colCondition, []float64{1, 2, 1, 2, 1, 2}),
		frame.NewFloatColumn(model.ColCycle, []float64{1, 1, 2, 2, 3, 3}),
		frame.NewFloatColumn(colCapLogMAh, []float64{3010, 3000, 2960, 2950, 2810, 2800}),
		frame.NewStringColumn(model.ColChannel, []string{"93", "93", "93", "93", "93", "93"}),
	)
}

func TestPerformanceMetrics_CapacityLog(t *testing.T) {
	sd := &model.StandardizedData{Data: cyclingFrame(t), Capacity: toyoCapacity(t), Format: model.FormatToyo}
	perf := New(sd, cfg()).PerformanceMetrics().Results.(*Performance)

	require.NotNil(t, perf.Capacity)
	assert.Equal(t, "capacity_log", perf.Capacity.Source)
	assert.InDelta(t, 2916.666666, perf.Capacity.Discharge.Mean, 1e-5)
	assert.Equal(t, 2800.0, perf.Capacity.Discharge.Min)
	require.NotNil(t, perf.Efficiency)
	assert.Equal(t, 3, perf.Efficiency.Pairs)
}

func TestPerformanceMetrics_NoCapacity(t *testing.T) {
	perf := New(&model.StandardizedData{Data: cyclingFrame(t)}, cfg()).PerformanceMetrics().Results.(*Performance)
	assert.Nil(t, perf.Capacity)
	assert.Nil(t, perf.Efficiency)
	assert.NotNil(t, perf.Energy)
}

func TestComputeFade(t *testing.T) {
	f, err := ComputeFade([]float64{1, 2, 3}, []float64{3000, 2950, 2800})
	require.NoError(t, err)

	require.Len(t, f.Points, 3)
	wantRet := []float64{100, 98.333333, 93.333333}
	wantFade := []float64{0, 1.666667, 6.666667}
	for i, p := range f.Points {
		assert.InDelta(t, wantRet[i], p.RetentionPct, 1e-5, "retention %d", i)
		assert.InDelta(t, wantFade[i], p.FadePct, 1e-5, "fade %d", i)
	}
	assert.Zero(t, f.Points[0].FadeRatePct)
	assert.InDelta(t, 5.0, f.Points[2].FadeRatePct, 1e-9)
	assert.Equal(t, 3.0, f.InitialAh)
	assert.Equal(t, 2.8, f.FinalAh)
	assert.InDelta(t, 6.666667, f.TotalFadePct, 1e-5)
	assert.InDelta(t, 3.333333, f.MeanFadeRatePct, 1e-5)
	assert.Equal(t, 3, f.Cycles)
}

func TestComputeFade_Errors(t *testing.T) {
	_, err := ComputeFade(nil, nil)
	assert.Error(t, err)
	_, err = ComputeFade([]float64{1}, []float64{0})
	assert.Error(t, err)
	_, err = ComputeFade([]float64{1, 2}, []float64{3000})
	assert.Error(t, err)
}

func TestCapacityFade_FromLog(t *testing.T) {
	capLog := toyoCapacity(t)
	// cycles out of order in the log
	capLog = capLog.Take([]int{4, 5, 0, 1, 2, 3})
	sd := &model.StandardizedData{Data: cyclingFrame(t), Capacity: capLog}

	res, err := New(sd, cfg()).CapacityFade()
	require.NoError(t, err)
	fr := res.Results.(*FadeReport)
	assert.Equal(t, "capacity_log", fr.Source)
	require.Len(t, fr.Channels, 1)
	fade := fr.Channels[0]
	assert.Equal(t, "93", fade.Channel)
	assert.Equal(t, []float64{1, 2, 3}, []float64{fade.Points[0].Cycle, fade.Points[1].Cycle, fade.Points[2].Cycle})
	assert.InDelta(t, 6.666667, fade.TotalFadePct, 1e-5)
}

func TestCapacityFade_FromCycleCapacity(t *testing.T) {
	f := mustFrame(t,
		frame.NewStringColumn(model.ColChannel, []string{"a", "a", "a", "a"}),
		frame.NewFloatColumn(model.ColCycle, []float64{1, 1, 2, 2}),
		frame.NewFloatColumn(colDchgCapacity, []float64{500, 1000, 400, 900}),
	)
	res, err := New(&model.StandardizedData{Data: f}, cfg()).CapacityFade()
	require.NoError(t, err)
	fade := res.Results.(*FadeReport).Channels[0]
	assert.Equal(t, 1.0, fade.InitialAh)
	assert.Equal(t, 0.9, fade.FinalAh)
}

func TestCapacityFade_NoData(t *testing.T) {
	_, err := New(&model.StandardizedData{Data: cyclingFrame(t)}, cfg()).CapacityFade()
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNoCapacityData))
}

func TestCycleCapacity(t *testing.T) {
	f := mustFrame(t,
		frame.NewStringColumn(model.ColChannel, []string{"b", "b", "a", "b", "a"}),
		frame.NewFloatColumn(model.ColCycle, []float64{2, 1, 1, 2, 1}),
		frame.NewFloatColumn(colChgCapacity, []float64{10, 20, 5, 30, 7}),
		frame.NewFloatColumn(colDchgCapacity, []float64{math.NaN(), 1, 2, 3, 4}),
	)
	cc := CycleCapacity(f)
	require.Len(t, cc, 3)

	assert.Equal(t, "b", cc[0].Channel)
	assert.Equal(t, 1.0, cc[0].Cycle)
	assert.Equal(t, 20.0, *cc[0].ChargeMAh)

	assert.Equal(t, "b", cc[1].Channel)
	assert.Equal(t, 2.0, cc[1].Cycle)
	assert.Equal(t, 30.0, *cc[1].ChargeMAh)
	assert.Equal(t, 3.0, *cc[1].DischargeMAh)

	assert.Equal(t, "a", cc[2].Channel)
	assert.Equal(t, 7.0, *cc[2].ChargeMAh)
	assert.Equal(t, 4.0, *cc[2].DischargeMAh)

	assert.Nil(t, CycleCapacity(frame.New()))
}

func TestChannelSummary(t *testing.T) {
	f := mustFrame(t,
		frame.NewStringColumn(model.ColChannel, []string{"2", "2", "1"}),
		frame.NewTimeColumn(model.ColDatetime, times(3, time.Hour)),
		frame.NewFloatColumn(model.ColVoltage, []float64{3.1, 3.9, 3.5}),
		frame.NewFloatColumn(model.ColCycle, []float64{1, 2, 1}),
	)
	sum := ChannelSummary(f)
	require.Len(t, sum, 2)
	assert.Equal(t, "2", sum[0].Channel)
	assert.Equal(t, 2, sum[0].Rows)
	assert.Equal(t, 2, sum[0].Cycles)
	assert.Equal(t, 3.1, *sum[0].VoltageMin)
	assert.Equal(t, 3.9, *sum[0].VoltageMax)
	assert.Equal(t, time.Hour, sum[0].Duration)
	assert.Zero(t, sum[1].Duration, "single row has no span")

	assert.Nil(t, ChannelSummary(frame.New()))
}

func TestRunAll(t *testing.T) {
	sd := &model.StandardizedData{Data: cyclingFrame(t), Capacity: toyoCapacity(t), Format: model.FormatToyo}
	results, err := New(sd, cfg()).RunAll(context.Background())
	require.NoError(t, err)
	for _, kind := range reportOrder {
		assert.Contains(t, results, kind)
	}

	sd.Capacity = nil
	results, err = New(sd, cfg()).RunAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.NotContains(t, results, model.AnalysisCapacityFade)
}

func TestRunAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&model.StandardizedData{Data: cyclingFrame(t)}, cfg()).RunAll(ctx)
	require.Error(t, err)
	assert.True(t, eris.Is(err, context.Canceled))
}

func TestAnalyzer_EmptyData(t *testing.T) {
	a := New(nil, cfg())
	bs := a.BasicStatistics().Results.(*BasicStats)
	assert.Zero(t, bs.General.TotalRecords)
	assert.Nil(t, bs.General.TimeSpanHours)

	ec := a.ElectrochemicalBehavior().Results.(*Electrochem)
	assert.Nil(t, ec.Voltage)
	assert.Nil(t, ec.Power)

	an := a.DetectAnomalies().Results.(*Anomalies)
	assert.Empty(t, an.Outliers)
}

func TestReport(t *testing.T) {
	n := 1200
	f := mustFrame(t,
		frame.NewTimeColumn(model.ColDatetime, times(n, time.Second)),
		frame.NewFloatColumn(model.ColVoltage, fill(n, 3.7)),
		frame.NewFloatColumn(model.ColCurrent, fill(n, 0.5)),
		frame.NewFloatColumn(model.ColCycle, fill(n, 1)),
		frame.NewStringColumn(model.ColChannel, make([]string, n)),
	)
	sd := &model.StandardizedData{Data: f, Capacity: toyoCapacity(t), Format: model.FormatToyo}
	a := New(sd, cfg())
	a.now = func() time.Time { return t0 }

	v := &model.ValidationResult{QualityScore: 55, Issues: []string{"Missing required column: Temperature_C"}}
	out, err := a.Report(context.Background(), v)
	require.NoError(t, err)

	for _, want := range []string{
		"BATTERY DATA ANALYSIS REPORT",
		"Generated: 2024-03-01 08:00:00",
		"Data Format: TOYO",
		"Total Records: 1,200",
		"Overall Status: INVALID",
		"Quality Score: 55.0%",
		"  • Missing required column: Temperature_C",
		"BASIC STATISTICS",
		"Unique Cycles: 1",
		"Voltage_V: Mean=3.700, Std=0.000",
		"ANOMALY DETECTION",
		"Total Statistical Outliers: 0",
		"CAPACITY FADE",
		"Channel 93: 3.000 -> 2.800 Ah",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "BASIC STATISTICS"), strings.Index(out, "ELECTROCHEMICAL BEHAVIOR"))
	assert.Less(t, strings.Index(out, "PERFORMANCE METRICS"), strings.Index(out, "CAPACITY FADE"))
}

func TestHistogram(t *testing.T) {
	edges, counts := Histogram([]float64{0, 1, 2, 3, 4}, 4)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, edges)
	assert.Equal(t, []float64{1, 1, 1, 2}, counts, "maximum lands in the last bin")

	edges, counts = Histogram(nil, 4)
	assert.Nil(t, edges)
	assert.Nil(t, counts)
}
