package format

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
	"github.com/sells-group/cycler-cli/internal/textio"
)

// toyo2Columns is the Toyo2 layout used when a header row is unreadable.
var toyo2Columns = []string{
	"Date", "Time", "PassTime[Sec]", "Voltage[V]", "Current[mA]",
	"Col5", "Col6", "Temp1[Deg]", "Col8", "Col9", "Col10", "Col11",
	"Condition", "Mode", "Cycle", "TotlCycle", "Temp1[Deg]_2",
}

// toyo1Columns adds PassedDate after TotlCycle.
var toyo1Columns = []string{
	"Date", "Time", "PassTime[Sec]", "Voltage[V]", "Current[mA]",
	"Col5", "Col6", "Temp1[Deg]", "Col8", "Col9", "Col10", "Col11",
	"Condition", "Mode", "Cycle", "TotlCycle", "PassedDate", "Temp1[Deg]_2",
}

var toyoNumeric = []string{
	"PassTime_Sec", "Voltage_V", "Current_mA", "Temp1_Deg", "Temp1_Deg_2",
	"Condition", "Mode", "Cycle", "TotlCycle", "PassedDate",
}

var capacityNumeric = []string{
	"Condition", "Mode", "Cycle", "TotlCycle", "Cap_mAh", "Pow_mWh",
	"AveVolt_V", "PeakVolt_V", "PeakTemp_Deg", "Ocv_V", "DchCycle", "PassedDate",
}

// ToyoVariant picks the Toyo version from decoded header text.
func ToyoVariant(header string) model.Variant {
	if strings.Contains(header, "PassedDate") {
		return model.VariantToyo1
	}
	return model.VariantToyo2
}

// Toyo parses Toyo1 and Toyo2 channel files.
type Toyo struct {
	variant model.Variant
	reader  *textio.Reader
}

// NewToyo1 returns the handler for headers carrying PassedDate.
func NewToyo1(r *textio.Reader) *Toyo {
	return &Toyo{variant: model.VariantToyo1, reader: r}
}

// NewToyo2 returns the handler for headers without PassedDate.
func NewToyo2(r *textio.Reader) *Toyo {
	return &Toyo{variant: model.VariantToyo2, reader: r}
}

// Variant implements Handler.
func (t *Toyo) Variant() model.Variant { return t.variant }

// Detect implements Handler.
func (t *Toyo) Detect(root string) (int, error) {
	return scoreToyo(root)
}

// ColumnMap names header fields. Blank fields become Col<position> and
// repeated names get _2, _3 suffixes. An empty header yields the variant's
// fixed layout.
func (t *Toyo) ColumnMap(header []string) []string {
	if len(header) == 0 {
		if t.variant == model.VariantToyo1 {
			return append([]string(nil), toyo1Columns...)
		}
		return append([]string(nil), toyo2Columns...)
	}
	return headerNames(header)
}

func headerNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.Trim(strings.TrimSpace(h), `"`)
		if name == "" {
			name = "Col" + strconv.Itoa(i)
		}
		seen[name]++
		if k := seen[name]; k > 1 {
			name = name + "_" + strconv.Itoa(k)
		}
		out[i] = name
	}
	return out
}

// ParseFile implements Handler.
func (t *Toyo) ParseFile(ctx context.Context, path string, opts ParseOptions) (*FileResult, error) {
	res := newResult(path, t.variant)
	d, err := t.reader.ReadFile(path)
	if err != nil {
		return res, eris.Wrap(err, "toyo: read data file")
	}
	res.noteDecode(d)
	lines := d.Lines()

	idx := opts.HeaderLine
	if idx < 0 {
		idx = DefaultHeaderLine
		if opts.DefaultHeaderLine > 0 {
			idx = opts.DefaultHeaderLine
		}
		if found, ok := FindHeaderLine(lines); ok {
			idx = found
		}
	} else if idx >= len(lines) || !LooksLikeHeader(lines[idx]) {
		if found, ok := FindHeaderLine(lines); ok && found != idx {
			zap.L().Warn("header line moved within channel",
				zap.String("file", filepath.Base(path)),
				zap.Int("expected", idx),
				zap.Int("found", found),
			)
			idx = found
			res.HeaderRelocated = true
		}
	}
	if idx >= len(lines) {
		return res, eris.Errorf("toyo: header line %d beyond end of %s (%d lines)", idx, filepath.Base(path), len(lines))
	}
	res.HeaderLine = idx
	res.Preamble = firstNonBlank(lines[:idx])

	header := textio.SplitFields(lines[idx], ',')
	if strings.TrimSpace(lines[idx]) == "" {
		header = nil
	}
	names := t.ColumnMap(header)

	set, err := readTable(ctx, path, lines[idx+1:], len(header))
	if err != nil {
		return res, eris.Wrap(err, "toyo: read rows")
	}
	res.Skipped = set.Skipped
	if len(header) == 0 && len(set.Rows) > 0 {
		names = padNames(names, len(set.Rows[0]))
	}

	f := frame.FromRows(CleanColumns(names), set.Rows)
	f = dropEmptyRows(f)
	dropFillerColumns(f)
	coerceNumeric(f, toyoNumeric...)
	addDatetime(f)
	tagFile(f, filepath.Base(path))
	res.Frame = f
	return res, nil
}

// ParseCapacityLog implements Handler. The header is located with the same
// rules as data files but defaults to the first line.
func (t *Toyo) ParseCapacityLog(ctx context.Context, path string) (*FileResult, error) {
	res := newResult(path, t.variant)
	d, err := t.reader.ReadFile(path)
	if err != nil {
		return res, eris.Wrap(err, "toyo: read capacity log")
	}
	res.noteDecode(d)
	lines := d.Lines()

	idx, ok := FindHeaderLine(lines)
	if !ok {
		idx = 0
	}
	if idx >= len(lines) {
		return res, nil
	}
	res.HeaderLine = idx
	res.Preamble = firstNonBlank(lines[:idx])

	header := textio.SplitFields(lines[idx], ',')
	set, err := readTable(ctx, path, lines[idx+1:], len(header))
	if err != nil {
		return res, eris.Wrap(err, "toyo: read capacity rows")
	}
	res.Skipped = set.Skipped

	f := frame.FromRows(CleanColumns(headerNames(header)), set.Rows)
	f = dropEmptyRows(f)
	dropFillerColumns(f)
	f.Rename("Ocv", "Ocv_V")
	coerceNumeric(f, capacityNumeric...)
	for _, name := range []string{"PassTime", "TotlPassTime"} {
		raw := f.Strings(name)
		if raw == nil {
			continue
		}
		secs := make([]float64, len(raw))
		for i, s := range raw {
			secs[i] = ParseClock(s)
		}
		_ = f.Set(frame.NewFloatColumn(name+"_s", secs))
	}
	addDatetime(f)
	tagFile(f, filepath.Base(path))
	res.Frame = f
	return res, nil
}

func padNames(names []string, width int) []string {
	for i := len(names); i < width; i++ {
		names = append(names, "Col"+strconv.Itoa(i))
	}
	return names
}
