package analysis

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/cycler-cli/internal/model"
)

// BasicStats is the basic_statistics result.
type BasicStats struct {
	General      GeneralStats                  `json:"general" yaml:"general"`
	Descriptive  map[string]Descriptive        `json:"descriptive" yaml:"descriptive"`
	Correlations map[string]map[string]float64 `json:"correlations,omitempty" yaml:"correlations,omitempty"`
}

// GeneralStats holds table-wide counts. Nil pointers mean the value could
// not be computed.
type GeneralStats struct {
	TotalRecords  int      `json:"total_records" yaml:"total_records"`
	TimeSpanHours *float64 `json:"time_span_hours" yaml:"time_span_hours"`
	UniqueCycles  *int     `json:"unique_cycles" yaml:"unique_cycles"`
}

// Descriptive summarizes one numeric variable. Std is the sample standard
// deviation; quantiles interpolate linearly.
type Descriptive struct {
	Count    int     `json:"count" yaml:"count"`
	Mean     float64 `json:"mean" yaml:"mean"`
	Std      float64 `json:"std" yaml:"std"`
	Min      float64 `json:"min" yaml:"min"`
	Max      float64 `json:"max" yaml:"max"`
	Median   float64 `json:"median" yaml:"median"`
	Q25      float64 `json:"q25" yaml:"q25"`
	Q75      float64 `json:"q75" yaml:"q75"`
	Skewness float64 `json:"skewness" yaml:"skewness"`
	Kurtosis float64 `json:"kurtosis" yaml:"kurtosis"`
}

// Describe computes descriptive statistics. vals must not contain NaN.
// Skewness needs three values and kurtosis four; below that they are zero.
func Describe(vals []float64) Descriptive {
	if len(vals) == 0 {
		return Descriptive{}
	}
	s := sorted(vals)
	d := Descriptive{
		Count:  len(s),
		Mean:   stat.Mean(s, nil),
		Min:    s[0],
		Max:    s[len(s)-1],
		Median: stat.Quantile(0.5, stat.LinInterp, s, nil),
		Q25:    stat.Quantile(0.25, stat.LinInterp, s, nil),
		Q75:    stat.Quantile(0.75, stat.LinInterp, s, nil),
	}
	if len(s) > 1 {
		d.Std = stat.StdDev(s, nil)
	}
	if len(s) > 2 && d.Std > 0 {
		d.Skewness = finite(stat.Skew(s, nil))
	}
	if len(s) > 3 && d.Std > 0 {
		d.Kurtosis = finite(stat.ExKurtosis(s, nil))
	}
	return d
}

// BasicStatistics computes record counts, time span, cycle count, per
// variable descriptive statistics and the correlation matrix of the key
// variables.
func (a *Analyzer) BasicStatistics() *model.AnalysisResult {
	f := a.data()
	numeric := numericColumns(f)
	out := &BasicStats{
		General:     GeneralStats{TotalRecords: f.Len()},
		Descriptive: make(map[string]Descriptive),
	}

	if ts := validTimes(f); len(ts) > 1 {
		h := ts[len(ts)-1].Sub(ts[0]).Hours()
		out.General.TimeSpanHours = &h
	}
	if f.Has(model.ColCycle) {
		n := uniqueCount(present(f, model.ColCycle))
		out.General.UniqueCycles = &n
	}

	var corrVars []string
	for _, col := range keyVariables {
		if !isNumeric(f, col) {
			continue
		}
		corrVars = append(corrVars, col)
		if vals := present(f, col); len(vals) > 0 {
			out.Descriptive[col] = Describe(vals)
		}
	}
	if len(corrVars) > 1 {
		out.Correlations = correlationMatrix(f.Floats, corrVars)
	}

	zap.L().Info("basic statistics complete", zap.Int("variables", len(numeric)))
	return a.store(model.AnalysisBasicStatistics, out, map[string]any{
		"method":             "descriptive_statistics",
		"variables_analyzed": numeric,
	})
}

// correlationMatrix computes pairwise Pearson correlation over rows where
// both values are present.
func correlationMatrix(column func(string) []float64, vars []string) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(vars))
	for _, v := range vars {
		out[v] = make(map[string]float64, len(vars))
	}
	for i, x := range vars {
		out[x][x] = 1
		for _, y := range vars[i+1:] {
			xs, ys := pairwise(column(x), column(y))
			c := 0.0
			if len(xs) > 1 {
				c = finite(stat.Correlation(xs, ys, nil))
			}
			out[x][y] = c
			out[y][x] = c
		}
	}
	return out
}

func pairwise(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if i >= len(y) || math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

func uniqueCount(vals []float64) int {
	seen := make(map[float64]struct{}, len(vals))
	for _, v := range vals {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// Histogram bins vals into n equal-width bins over [min, max]; the maximum
// falls in the last bin. It returns the bin edges and counts.
func Histogram(vals []float64, n int) (edges, counts []float64) {
	if len(vals) == 0 || n < 1 {
		return nil, nil
	}
	s := sorted(vals)
	lo, hi := s[0], s[len(s)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges = floats.Span(make([]float64, n+1), lo, hi)
	dividers := append([]float64(nil), edges...)
	dividers[n] = math.Nextafter(hi, math.Inf(1))
	counts = stat.Histogram(nil, dividers, s, nil)
	return edges, counts
}
