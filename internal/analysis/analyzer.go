// Package analysis derives statistics, electrochemical behavior, anomalies,
// performance metrics and capacity fade from a standardized table.
package analysis

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/cycler-cli/internal/config"
	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// keyVariables are the columns described, correlated and outlier-checked.
var keyVariables = []string{model.ColVoltage, model.ColCurrent, model.ColTemperature}

// reportOrder is the stable order analyses are listed in.
var reportOrder = []string{
	model.AnalysisBasicStatistics,
	model.AnalysisElectrochemical,
	model.AnalysisAnomalies,
	model.AnalysisPerformance,
	model.AnalysisCapacityFade,
}

// Analyzer computes derived metrics over one StandardizedData. Each
// operation is independent and stores its result under its own key, so
// operations may run in any order or concurrently.
type Analyzer struct {
	sd  *model.StandardizedData
	cfg config.AnalysisConfig

	mu      sync.Mutex
	results map[string]*model.AnalysisResult
	now     func() time.Time
}

// New creates an Analyzer. A nil sd is treated as an empty table.
func New(sd *model.StandardizedData, cfg config.AnalysisConfig) *Analyzer {
	if sd == nil {
		sd = &model.StandardizedData{Format: model.FormatUnknown}
	}
	if sd.Data == nil {
		sd = &model.StandardizedData{Data: frame.New(), Capacity: sd.Capacity, Format: sd.Format, Metadata: sd.Metadata}
	}
	return &Analyzer{
		sd:      sd,
		cfg:     cfg,
		results: make(map[string]*model.AnalysisResult),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (a *Analyzer) data() *frame.Frame { return a.sd.Data }

func (a *Analyzer) store(kind string, results any, meta map[string]any) *model.AnalysisResult {
	res := &model.AnalysisResult{
		AnalysisType: kind,
		Results:      results,
		Metadata:     meta,
		Timestamp:    a.now(),
	}
	a.mu.Lock()
	a.results[kind] = res
	a.mu.Unlock()
	return res
}

// Results returns a copy of every stored result keyed by analysis kind.
func (a *Analyzer) Results() map[string]*model.AnalysisResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]*model.AnalysisResult, len(a.results))
	for k, v := range a.results {
		out[k] = v
	}
	return out
}

// Result returns one stored result.
func (a *Analyzer) Result(kind string) (*model.AnalysisResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.results[kind]
	return r, ok
}

// RunAll runs every analysis concurrently. Capacity fade runs only when
// capacity data is available.
func (a *Analyzer) RunAll(ctx context.Context) (map[string]*model.AnalysisResult, error) {
	log := zap.L().With(zap.String("format", string(a.sd.Format)), zap.Int("rows", a.data().Len()))
	log.Info("starting analysis")

	steps := []func(){
		func() { a.BasicStatistics() },
		func() { a.ElectrochemicalBehavior() },
		func() { a.DetectAnomalies() },
		func() { a.PerformanceMetrics() },
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, step := range steps {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "analysis: cancelled")
			}
			step()
			return nil
		})
	}
	if a.hasCapacity() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "analysis: cancelled")
			}
			if _, err := a.CapacityFade(); err != nil {
				log.Warn("capacity fade skipped", zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("analysis complete", zap.Int("analyses", len(a.Results())))
	return a.Results(), nil
}

func (a *Analyzer) hasCapacity() bool {
	if a.sd.Capacity != nil && a.sd.Capacity.Len() > 0 {
		return true
	}
	return a.data().Has(colDchgCapacity)
}

// indexed is a non-null value and its row position in the table.
type indexed struct {
	row int
	val float64
}

// presentIndexed returns the non-NaN values of col with their row numbers,
// or nil when the column is absent.
func presentIndexed(f *frame.Frame, col string) []indexed {
	vals := f.Floats(col)
	if vals == nil {
		return nil
	}
	out := make([]indexed, 0, len(vals))
	for i, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, indexed{row: i, val: v})
		}
	}
	return out
}

// present returns the non-NaN values of col, or nil when it is absent.
func present(f *frame.Frame, col string) []float64 {
	vals := f.Floats(col)
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

// isNumeric reports whether col exists as a float column.
func isNumeric(f *frame.Frame, col string) bool {
	c := f.Column(col)
	return c != nil && c.Kind == frame.Float
}

// numericColumns lists the float columns in table order.
func numericColumns(f *frame.Frame) []string {
	var out []string
	for _, c := range f.Columns() {
		if c.Kind == frame.Float {
			out = append(out, c.Name)
		}
	}
	return out
}

// validTimes returns the non-zero timestamps of the Datetime column sorted
// ascending, or nil when there is no time column.
func validTimes(f *frame.Frame) []time.Time {
	ts := f.Times(model.ColDatetime)
	if ts == nil {
		return nil
	}
	out := make([]time.Time, 0, len(ts))
	for _, t := range ts {
		if !t.IsZero() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func sorted(vals []float64) []float64 {
	out := append([]float64(nil), vals...)
	sort.Float64s(out)
	return out
}

func fillZero(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if !math.IsNaN(v) {
			out[i] = v
		}
	}
	return out
}

// finite maps NaN and infinities to zero so results stay encodable.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
