package analysis

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// FadePoint is one discharge cycle's capacity relative to the first.
type FadePoint struct {
	Cycle        float64 `json:"cycle" yaml:"cycle"`
	CapacityAh   float64 `json:"capacity_Ah" yaml:"capacity_Ah"`
	RetentionPct float64 `json:"retention_pct" yaml:"retention_pct"`
	FadePct      float64 `json:"fade_pct" yaml:"fade_pct"`
	FadeRatePct  float64 `json:"fade_rate_pct" yaml:"fade_rate_pct"`
}

// Fade is the capacity fade series of one channel. FadeRatePct is the first
// difference of FadePct and is zero for the first point.
type Fade struct {
	Channel         string      `json:"channel" yaml:"channel"`
	Points          []FadePoint `json:"points" yaml:"points"`
	InitialAh       float64     `json:"initial_capacity_Ah" yaml:"initial_capacity_Ah"`
	FinalAh         float64     `json:"final_capacity_Ah" yaml:"final_capacity_Ah"`
	TotalFadePct    float64     `json:"total_fade_pct" yaml:"total_fade_pct"`
	MeanFadeRatePct float64     `json:"mean_fade_rate_pct" yaml:"mean_fade_rate_pct"`
	Cycles          int         `json:"cycles" yaml:"cycles"`
}

// FadeReport is the capacity_fade result, one entry per channel.
type FadeReport struct {
	Source   string  `json:"source" yaml:"source"`
	Channels []*Fade `json:"channels" yaml:"channels"`
}

// ComputeFade builds a fade series from discharge capacities in mAh ordered
// by cycle. The first capacity is the reference and must be positive.
func ComputeFade(cycles, capMAh []float64) (*Fade, error) {
	if len(cycles) != len(capMAh) {
		return nil, eris.Errorf("analysis: %d cycles for %d capacities", len(cycles), len(capMAh))
	}
	if len(capMAh) == 0 {
		return nil, eris.New("analysis: no discharge capacity")
	}
	initial := capMAh[0] / 1000
	if initial <= 0 || math.IsNaN(initial) {
		return nil, eris.Errorf("analysis: initial capacity %g Ah is not positive", initial)
	}

	f := &Fade{Points: make([]FadePoint, len(capMAh)), Cycles: len(capMAh), InitialAh: initial}
	var rates []float64
	for i, c := range capMAh {
		ah := c / 1000
		ret := ah / initial * 100
		p := FadePoint{Cycle: cycles[i], CapacityAh: ah, RetentionPct: ret, FadePct: 100 - ret}
		if i > 0 {
			p.FadeRatePct = p.FadePct - f.Points[i-1].FadePct
			rates = append(rates, p.FadeRatePct)
		}
		f.Points[i] = p
	}
	last := f.Points[len(f.Points)-1]
	f.FinalAh = last.CapacityAh
	f.TotalFadePct = last.FadePct
	if len(rates) > 0 {
		f.MeanFadeRatePct = stat.Mean(rates, nil)
	}
	return f, nil
}

// CapacityFade computes per-channel fade from the capacity log's discharge
// rows, or from the per-cycle maximum discharge capacity when the table
// carries capacity columns instead.
func (a *Analyzer) CapacityFade() (*model.AnalysisResult, error) {
	var (
		series map[string]*cycleSeries
		order  []string
		source string
	)
	switch {
	case a.sd.Capacity != nil && a.sd.Capacity.Len() > 0 && a.sd.Capacity.Has(colCapLogMAh):
		series, order = dischargeFromLog(a.sd.Capacity)
		source = "capacity_log"
	case a.data().Has(colDchgCapacity):
		series, order = dischargeFromCycles(CycleCapacity(a.data()))
		source = "cycle_capacity"
	default:
		return nil, eris.Wrap(model.ErrNoCapacityData, "analysis: capacity fade")
	}

	report := &FadeReport{Source: source, Channels: []*Fade{}}
	for _, ch := range order {
		s := series[ch]
		s.sort()
		fade, err := ComputeFade(s.cycles, s.caps)
		if err != nil {
			zap.L().Warn("capacity fade skipped for channel", zap.String("channel", ch), zap.Error(err))
			continue
		}
		fade.Channel = ch
		report.Channels = append(report.Channels, fade)
	}
	if len(report.Channels) == 0 {
		return nil, eris.Wrap(model.ErrNoCapacityData, "analysis: no channel has a usable discharge series")
	}

	zap.L().Info("capacity fade complete", zap.Int("channels", len(report.Channels)), zap.String("source", source))
	return a.store(model.AnalysisCapacityFade, report, map[string]any{
		"method": "discharge_capacity_retention",
		"source": source,
	}), nil
}

type cycleSeries struct {
	cycles []float64
	caps   []float64
}

func (s *cycleSeries) sort() {
	idx := make([]int, len(s.cycles))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return s.cycles[idx[i]] < s.cycles[idx[j]] })
	cycles := make([]float64, len(idx))
	caps := make([]float64, len(idx))
	for i, k := range idx {
		cycles[i], caps[i] = s.cycles[k], s.caps[k]
	}
	s.cycles, s.caps = cycles, caps
}

func channelsOf(f *frame.Frame) []string {
	if ch := f.Strings(model.ColChannel); ch != nil {
		return ch
	}
	return make([]string, f.Len())
}

// dischargeFromLog collects Condition 2 rows per channel in first-seen
// channel order.
func dischargeFromLog(c *frame.Frame) (map[string]*cycleSeries, []string) {
	chans := channelsOf(c)
	cond := c.Floats(colCondition)
	cycle := c.Floats(model.ColCycle)
	caps := c.Floats(colCapLogMAh)

	out := make(map[string]*cycleSeries)
	var order []string
	for i := range caps {
		if cond == nil || int(cond[i]) != ConditionDischarge || math.IsNaN(caps[i]) {
			continue
		}
		cy := float64(i + 1)
		if cycle != nil && !math.IsNaN(cycle[i]) {
			cy = cycle[i]
		}
		s, ok := out[chans[i]]
		if !ok {
			s = &cycleSeries{}
			out[chans[i]] = s
			order = append(order, chans[i])
		}
		s.cycles = append(s.cycles, cy)
		s.caps = append(s.caps, caps[i])
	}
	return out, order
}

func dischargeFromCycles(cc []CycleCap) (map[string]*cycleSeries, []string) {
	out := make(map[string]*cycleSeries)
	var order []string
	for _, c := range cc {
		if c.DischargeMAh == nil {
			continue
		}
		s, ok := out[c.Channel]
		if !ok {
			s = &cycleSeries{}
			out[c.Channel] = s
			order = append(order, c.Channel)
		}
		s.cycles = append(s.cycles, c.Cycle)
		s.caps = append(s.caps, *c.DischargeMAh)
	}
	return out, order
}

// CycleCap is the maximum charge and discharge capacity reached in one
// cycle of one channel.
type CycleCap struct {
	Channel      string   `json:"channel" yaml:"channel"`
	Cycle        float64  `json:"cycle" yaml:"cycle"`
	ChargeMAh    *float64 `json:"chg_capacity_mAh" yaml:"chg_capacity_mAh"`
	DischargeMAh *float64 `json:"dchg_capacity_mAh" yaml:"dchg_capacity_mAh"`
}

// CycleCapacity aggregates capacity columns per (Channel, Cycle), channels in
// first-seen order and cycles ascending. It returns nil when the table has no
// Cycle column.
func CycleCapacity(f *frame.Frame) []CycleCap {
	cycle := f.Floats(model.ColCycle)
	if cycle == nil {
		return nil
	}
	chans := channelsOf(f)
	chg := f.Floats(colChgCapacity)
	dchg := f.Floats(colDchgCapacity)

	type key struct {
		ch    string
		cycle float64
	}
	byKey := make(map[key]*CycleCap)
	chanOrder := make(map[string]int)
	var all []*CycleCap
	for i, cy := range cycle {
		if math.IsNaN(cy) {
			continue
		}
		k := key{chans[i], cy}
		cc, ok := byKey[k]
		if !ok {
			cc = &CycleCap{Channel: chans[i], Cycle: cy}
			byKey[k] = cc
			all = append(all, cc)
			if _, seen := chanOrder[chans[i]]; !seen {
				chanOrder[chans[i]] = len(chanOrder)
			}
		}
		cc.ChargeMAh = maxInto(cc.ChargeMAh, chg, i)
		cc.DischargeMAh = maxInto(cc.DischargeMAh, dchg, i)
	}

	sort.SliceStable(all, func(i, j int) bool {
		ci, cj := chanOrder[all[i].Channel], chanOrder[all[j].Channel]
		if ci != cj {
			return ci < cj
		}
		return all[i].Cycle < all[j].Cycle
	})
	out := make([]CycleCap, len(all))
	for i, cc := range all {
		out[i] = *cc
	}
	return out
}

func maxInto(cur *float64, vals []float64, i int) *float64 {
	if vals == nil || math.IsNaN(vals[i]) {
		return cur
	}
	if cur == nil || vals[i] > *cur {
		v := vals[i]
		return &v
	}
	return cur
}
