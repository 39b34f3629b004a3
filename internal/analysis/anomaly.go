package analysis

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/cycler-cli/internal/model"
)

// Anomalies is the anomaly_detection result.
type Anomalies struct {
	Outliers     map[string]OutlierStats `json:"statistical_outliers" yaml:"statistical_outliers"`
	Temporal     *TemporalAnomalies      `json:"temporal_anomalies,omitempty" yaml:"temporal_anomalies,omitempty"`
	VoltageJumps *VoltageJumps           `json:"voltage_jumps,omitempty" yaml:"voltage_jumps,omitempty"`
}

// OutlierStats counts z-score and IQR outliers of one variable. Indices are
// table row numbers flagged by either method.
type OutlierStats struct {
	ZScoreOutliers int     `json:"z_score_outliers" yaml:"z_score_outliers"`
	ZScorePct      float64 `json:"z_score_outlier_pct" yaml:"z_score_outlier_pct"`
	IQROutliers    int     `json:"iqr_outliers" yaml:"iqr_outliers"`
	IQRPct         float64 `json:"iqr_outlier_pct" yaml:"iqr_outlier_pct"`
	Indices        []int   `json:"outlier_indices" yaml:"outlier_indices"`
}

// TemporalAnomalies describes gaps between consecutive sorted timestamps.
type TemporalAnomalies struct {
	TotalGaps     int     `json:"total_time_gaps" yaml:"total_time_gaps"`
	MedianGapMin  float64 `json:"median_time_gap_minutes" yaml:"median_time_gap_minutes"`
	LargeGaps     int     `json:"large_gaps_detected" yaml:"large_gaps_detected"`
	MaxGapHours   float64 `json:"max_gap_hours" yaml:"max_gap_hours"`
	GapMultiplier float64 `json:"gap_multiplier" yaml:"gap_multiplier"`
}

// VoltageJumps flags consecutive voltage changes larger than JumpSigma
// standard deviations of the absolute differences.
type VoltageJumps struct {
	ThresholdV    float64 `json:"jump_threshold_V" yaml:"jump_threshold_V"`
	JumpsDetected int     `json:"jumps_detected" yaml:"jumps_detected"`
	MaxJumpV      float64 `json:"max_jump_V" yaml:"max_jump_V"`
	Indices       []int   `json:"jump_indices" yaml:"jump_indices"`
}

// DetectAnomalies runs z-score and IQR outlier detection on the key
// variables plus temporal-gap and voltage-jump detection.
func (a *Analyzer) DetectAnomalies() *model.AnalysisResult {
	f := a.data()
	out := &Anomalies{Outliers: make(map[string]OutlierStats)}

	for _, col := range keyVariables {
		if vals := presentIndexed(f, col); len(vals) > 0 {
			out.Outliers[col] = a.outliers(vals)
		}
	}
	if f.Has(model.ColDatetime) {
		out.Temporal = a.temporalAnomalies()
	}
	if f.Has(model.ColVoltage) {
		out.VoltageJumps = a.voltageJumps(presentIndexed(f, model.ColVoltage))
	}

	total := 0
	for _, o := range out.Outliers {
		total += o.ZScoreOutliers
	}
	zap.L().Info("anomaly detection complete", zap.Int("z_score_outliers", total))
	return a.store(model.AnalysisAnomalies, out, map[string]any{
		"method":    "statistical_outlier_detection",
		"threshold": a.cfg.ZScore,
	})
}

func (a *Analyzer) outliers(vals []indexed) OutlierStats {
	x := make([]float64, len(vals))
	for i, v := range vals {
		x[i] = v.val
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	s := sorted(x)
	q1 := stat.Quantile(0.25, stat.LinInterp, s, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, s, nil)
	iqr := q3 - q1
	lo, hi := q1-a.cfg.IQRMultiplier*iqr, q3+a.cfg.IQRMultiplier*iqr

	var res OutlierStats
	res.Indices = []int{}
	for _, v := range vals {
		z := std > 0 && math.Abs(v.val-mean)/std > a.cfg.ZScore
		q := v.val < lo || v.val > hi
		if z {
			res.ZScoreOutliers++
		}
		if q {
			res.IQROutliers++
		}
		if (z || q) && len(res.Indices) < a.cfg.MaxSampleIndices {
			res.Indices = append(res.Indices, v.row)
		}
	}
	res.ZScorePct = pct(res.ZScoreOutliers, len(vals))
	res.IQRPct = pct(res.IQROutliers, len(vals))
	return res
}

func (a *Analyzer) temporalAnomalies() *TemporalAnomalies {
	ts := validTimes(a.data())
	if len(ts) < 2 {
		return &TemporalAnomalies{GapMultiplier: a.cfg.GapMultiplier}
	}
	gaps := make([]float64, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		gaps[i-1] = ts[i].Sub(ts[i-1]).Seconds()
	}
	s := sorted(gaps)
	median := stat.Quantile(0.5, stat.LinInterp, s, nil)
	large := 0
	for _, g := range gaps {
		if g > median*a.cfg.GapMultiplier {
			large++
		}
	}
	return &TemporalAnomalies{
		TotalGaps:     len(gaps),
		MedianGapMin:  median / 60,
		LargeGaps:     large,
		MaxGapHours:   s[len(s)-1] / 3600,
		GapMultiplier: a.cfg.GapMultiplier,
	}
}

func (a *Analyzer) voltageJumps(vals []indexed) *VoltageJumps {
	vj := &VoltageJumps{Indices: []int{}}
	if len(vals) < 2 {
		return vj
	}
	diffs := make([]float64, len(vals)-1)
	for i := 1; i < len(vals); i++ {
		diffs[i-1] = math.Abs(vals[i].val - vals[i-1].val)
	}
	vj.MaxJumpV = floats.Max(diffs)
	if len(diffs) < 2 {
		return vj
	}
	vj.ThresholdV = stat.StdDev(diffs, nil) * a.cfg.JumpSigma
	for i, d := range diffs {
		if d <= vj.ThresholdV {
			continue
		}
		vj.JumpsDetected++
		if len(vj.Indices) < a.cfg.MaxSampleIndices {
			vj.Indices = append(vj.Indices, vals[i+1].row)
		}
	}
	return vj
}
