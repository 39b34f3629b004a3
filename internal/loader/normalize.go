package loader

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// columnRule maps a parsed column onto a canonical one. Float values are
// divided by scale when it is non-zero.
type columnRule struct {
	from  string
	to    string
	scale float64
}

var toyoRules = []columnRule{
	{from: "Datetime", to: model.ColDatetime},
	{from: "Voltage_V", to: model.ColVoltage},
	{from: "Current_mA", to: model.ColCurrent, scale: 1000},
	{from: "Temp1_Deg", to: model.ColTemperature},
	{from: "Condition", to: "Condition"},
	{from: "Mode", to: "Mode"},
	{from: "Cycle", to: model.ColCycle},
}

var pneRules = []columnRule{
	{from: "Datetime", to: model.ColDatetime},
	{from: "Voltage_V", to: model.ColVoltage},
	{from: "Current_A", to: model.ColCurrent},
	{from: "Temperature1", to: model.ColTemperature},
	{from: "Current_Cycle", to: model.ColCycle},
	{from: "Step_type_name", to: "Step_type"},
}

// rulesFor returns the canonical column mapping for a format family.
func rulesFor(f model.Format) []columnRule {
	switch f {
	case model.FormatToyo:
		return toyoRules
	case model.FormatPNE:
		return pneRules
	default:
		return nil
	}
}

// Normalize merges channel results into one StandardizedData. Source columns
// are kept beside their canonical copies; every row carries Channel and
// Source_file.
func Normalize(f model.Format, channels []*ChannelResult) *model.StandardizedData {
	sd := &model.StandardizedData{
		Format: f,
		Raw:    make(map[string]*model.ChannelRaw, len(channels)),
		Metadata: model.Metadata{
			LoadID:   uuid.NewString(),
			Format:   f,
			Variants: make(map[string]model.Variant, len(channels)),
			LoadedAt: time.Now().UTC(),
		},
	}

	rules := rulesFor(f)
	var data, caps []*frame.Frame
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		md := &sd.Metadata
		md.Channels = append(md.Channels, ch.Name)
		md.Variants[ch.Name] = ch.Variant
		md.TotalFiles += len(ch.Files)
		md.FailedFiles += len(ch.FailedFiles)
		sd.Raw[ch.Name] = &model.ChannelRaw{
			Path:        ch.Path,
			Variant:     ch.Variant,
			HeaderLine:  ch.HeaderLine,
			Preamble:    ch.Preamble,
			Files:       ch.Files,
			FailedFiles: ch.FailedFiles,
			SkippedRows: ch.SkippedRows,
			Info:        ch.Info,
			Aux:         ch.Aux,
		}

		if ch.Data != nil && ch.Data.Len() > 0 {
			out, defaulted := canonicalize(ch, rules)
			if defaulted {
				md.CycleDefaulted = true
			}
			data = append(data, out)
		}
		if ch.Capacity != nil && ch.Capacity.Len() > 0 {
			c := ch.Capacity.Clone()
			_ = c.Set(constString(model.ColChannel, ch.Name, c.Len()))
			caps = append(caps, c)
		}
	}

	sd.Data = frame.Concat(data...)
	sd.Capacity = frame.Concat(caps...)
	fillMetadata(sd)
	return sd
}

// canonicalize copies a channel's table and adds the canonical columns.
// The second return reports whether Cycle had to be defaulted.
func canonicalize(ch *ChannelResult, rules []columnRule) (*frame.Frame, bool) {
	out := ch.Data.Clone()
	n := out.Len()
	for _, r := range rules {
		src := out.Column(r.from)
		if src == nil || (r.from == r.to && r.scale == 0) {
			continue
		}
		_ = out.Set(mapColumn(src, r))
	}

	defaulted := false
	if !out.Has(model.ColCycle) {
		ones := make([]float64, n)
		for i := range ones {
			ones[i] = 1
		}
		_ = out.Set(frame.NewFloatColumn(model.ColCycle, ones))
		defaulted = true
		zap.L().Warn("no cycle column, defaulting to cycle 1", zap.String("channel", ch.Name))
	}

	_ = out.Set(constString(model.ColChannel, ch.Name, n))
	source := out.Strings("FileName")
	if source == nil {
		source = make([]string, n)
	}
	_ = out.Set(frame.NewStringColumn(model.ColSourceFile, append([]string(nil), source...)))
	if module := ch.Info["module"]; module != "" {
		_ = out.Set(constString("Module", module, n))
	}
	return out, defaulted
}

func mapColumn(src *frame.Column, r columnRule) *frame.Column {
	switch src.Kind {
	case frame.Float:
		vals := src.Floats()
		out := make([]float64, len(vals))
		for i, v := range vals {
			if r.scale != 0 {
				v /= r.scale
			}
			out[i] = v
		}
		return frame.NewFloatColumn(r.to, out)
	case frame.Time:
		return frame.NewTimeColumn(r.to, append([]time.Time(nil), src.Times()...))
	default:
		return frame.NewStringColumn(r.to, append([]string(nil), src.Strings()...))
	}
}

func constString(name, value string, n int) *frame.Column {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = value
	}
	return frame.NewStringColumn(name, vals)
}

func fillMetadata(sd *model.StandardizedData) {
	md := &sd.Metadata
	md.RecordCount = sd.Data.Len()
	md.CapacityRecords = sd.Capacity.Len()
	md.HasCapacityData = md.CapacityRecords > 0

	if ts := sd.Data.Times(model.ColDatetime); ts != nil {
		var lo, hi time.Time
		for _, t := range ts {
			if t.IsZero() {
				continue
			}
			if lo.IsZero() || t.Before(lo) {
				lo = t
			}
			if hi.IsZero() || t.After(hi) {
				hi = t
			}
		}
		if !lo.IsZero() {
			md.DateRange = &model.DateRange{Start: lo, End: hi}
		}
	}

	for _, col := range model.RequiredColumns {
		if !sd.Data.Has(col) {
			md.MissingColumns = append(md.MissingColumns, col)
		}
	}
	if len(md.MissingColumns) > 0 {
		zap.L().Warn("missing standardized columns",
			zap.Strings("columns", md.MissingColumns),
			zap.String("format", string(sd.Format)),
		)
	}
}
