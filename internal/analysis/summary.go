package analysis

import (
	"math"
	"time"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// ChannelStats summarizes one channel of a standardized table.
type ChannelStats struct {
	Channel    string        `json:"channel" yaml:"channel"`
	Rows       int           `json:"rows" yaml:"rows"`
	Cycles     int           `json:"cycles" yaml:"cycles"`
	VoltageMin *float64      `json:"voltage_min,omitempty" yaml:"voltage_min,omitempty"`
	VoltageMax *float64      `json:"voltage_max,omitempty" yaml:"voltage_max,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// ChannelSummary summarizes each channel in first-seen order. A table
// without a Channel column is summarized as a single unnamed channel.
func ChannelSummary(f *frame.Frame) []ChannelStats {
	if f == nil || f.Len() == 0 {
		return nil
	}
	chans := channelsOf(f)
	idx := make(map[string]int)
	var groups []rowGroupNamed
	for i, ch := range chans {
		j, ok := idx[ch]
		if !ok {
			j = len(groups)
			idx[ch] = j
			groups = append(groups, rowGroupNamed{name: ch})
		}
		groups[j].rows = append(groups[j].rows, i)
	}

	volts := f.Floats(model.ColVoltage)
	cycles := f.Floats(model.ColCycle)
	ts := f.Times(model.ColDatetime)

	out := make([]ChannelStats, 0, len(groups))
	for _, g := range groups {
		cs := ChannelStats{Channel: g.name, Rows: len(g.rows)}
		if v := pick(volts, g.rows); len(v) > 0 {
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, x := range v {
				lo, hi = math.Min(lo, x), math.Max(hi, x)
			}
			cs.VoltageMin, cs.VoltageMax = &lo, &hi
		}
		if cycles != nil {
			cs.Cycles = uniqueCount(pick(cycles, g.rows))
		}
		if ts != nil {
			if d, ok := timeSpan(ts, g.rows); ok {
				cs.Duration = d
			}
		}
		out = append(out, cs)
	}
	return out
}

type rowGroupNamed struct {
	name string
	rows []int
}
