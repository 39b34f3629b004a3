package format

import (
	"context"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
	"github.com/sells-group/cycler-cli/internal/textio"
)

// pneColumns names the 47 positional fields of a PNE SaveData row.
var pneColumns = [...]string{
	"Index", "Default", "Step_type", "ChgDchg", "Current_classification",
	"CCCV", "EndState", "Step_count", "Voltage_uV", "Current_uA",
	"Chg_Capacity_uAh", "Dchg_Capacity_uAh", "Chg_Power_mW", "Dchg_Power_mW", "Chg_WattHour_Wh",
	"Dchg_WattHour_Wh", "Repeat_pattern_count", "StepTime_centisec", "TotTime_day", "TotTime_centisec",
	"Impedance", "Temperature1", "Temperature2", "Temperature3", "Temperature4",
	"Unknown25", "Repeat_count", "TotalCycle", "Current_Cycle", "Average_Voltage_uV",
	"Average_Current_uA", "Unknown31", "CV_section", "Date_YYYYMMDD", "Time_centisec",
	"Unknown35", "Unknown36", "Unknown37", "Step_specific", "CC_charge",
	"CV_section2", "Discharge", "Unknown42", "Average_Voltage_section", "Cumulative_step",
	"Voltage_max_uV", "Voltage_min_uV",
}

// PNEColumnCount is the number of named positional fields.
const PNEColumnCount = len(pneColumns)

var indexColumns = []string{"fileIndex", "resultIndex", "open_year", "open_month", "open_day"}

// StepTypeNames decodes the PNE Step_type field.
var StepTypeNames = map[int]string{
	1: "Charge",
	2: "Discharge",
	3: "Rest",
	4: "OCV",
	5: "Impedance",
	8: "Loop",
}

// ChgDchgNames decodes the PNE ChgDchg field.
var ChgDchgNames = map[int]string{
	1:   "CV",
	2:   "CC",
	255: "Rest",
}

// pneConversion derives a scaled column from a raw micro-unit column.
type pneConversion struct {
	from, to string
	scale    float64
}

var pneConversions = []pneConversion{
	{"Voltage_uV", "Voltage_V", 1e6},
	{"Current_uA", "Current_A", 1e6},
	{"Chg_Capacity_uAh", "Chg_Capacity_mAh", 1e3},
	{"Dchg_Capacity_uAh", "Dchg_Capacity_mAh", 1e3},
	{"Average_Voltage_uV", "Average_Voltage_V", 1e6},
	{"Average_Current_uA", "Average_Current_A", 1e6},
	{"Voltage_max_uV", "Voltage_max_V", 1e6},
	{"Voltage_min_uV", "Voltage_min_V", 1e6},
	{"StepTime_centisec", "StepTime_s", 100},
}

var channelName = regexp.MustCompile(`(M\d+)Ch(\d+)\[(\d+)\]`)

// ChannelInfo is what a PNE channel directory name encodes.
type ChannelInfo struct {
	Module     string
	ChannelNum int
	ChannelID  int
}

// ParseChannelName parses names like "M01Ch003[003]".
func ParseChannelName(name string) (ChannelInfo, bool) {
	m := channelName.FindStringSubmatch(name)
	if m == nil {
		return ChannelInfo{}, false
	}
	num, _ := strconv.Atoi(m[2])
	id, _ := strconv.Atoi(m[3])
	return ChannelInfo{Module: m[1], ChannelNum: num, ChannelID: id}, true
}

// IndexParser is implemented by handlers whose channels carry index files.
type IndexParser interface {
	ParseIndexFile(ctx context.Context, path string) (*FileResult, error)
}

// PNE parses PNE Restore folders.
type PNE struct {
	reader *textio.Reader
}

// NewPNE returns the PNE handler.
func NewPNE(r *textio.Reader) *PNE {
	return &PNE{reader: r}
}

// Variant implements Handler.
func (p *PNE) Variant() model.Variant { return model.VariantPNE }

// Detect implements Handler.
func (p *PNE) Detect(root string) (int, error) {
	return scorePNE(root)
}

// ColumnMap names the positions of a headerless row of len(row) fields.
// Positions past the known layout become Unknown_<i>.
func (p *PNE) ColumnMap(row []string) []string {
	out := make([]string, len(row))
	for i := range row {
		if i < PNEColumnCount {
			out[i] = pneColumns[i]
		} else {
			out[i] = "Unknown_" + strconv.Itoa(i)
		}
	}
	return out
}

// ParseFile implements Handler. PNE files have no header; rows of the most
// common width are kept and every column is numeric.
func (p *PNE) ParseFile(ctx context.Context, path string, _ ParseOptions) (*FileResult, error) {
	res := newResult(path, model.VariantPNE)
	d, err := p.reader.ReadFile(path)
	if err != nil {
		return res, eris.Wrap(err, "pne: read data file")
	}
	res.noteDecode(d)

	set, err := readTable(ctx, path, d.Lines(), 0)
	if err != nil {
		return res, eris.Wrap(err, "pne: read rows")
	}
	res.Skipped = set.Skipped
	if len(set.Rows) == 0 {
		return res, nil
	}

	names := p.ColumnMap(set.Rows[0])
	f := frame.FromRows(names, set.Rows)
	f = dropEmptyRows(f)
	coerceNumeric(f, names...)
	applyPNEConversions(f)
	tagFile(f, filepath.Base(path))
	if idx, ok := SaveDataIndex(path); ok {
		vals := make([]float64, f.Len())
		for i := range vals {
			vals[i] = float64(idx)
		}
		_ = f.Set(frame.NewFloatColumn("File_index", vals))
	}
	res.Frame = f
	return res, nil
}

// ParseCapacityLog implements Handler. PNE has no capacity log.
func (p *PNE) ParseCapacityLog(_ context.Context, path string) (*FileResult, error) {
	return newResult(path, model.VariantPNE), nil
}

// ParseIndexFile parses savingFileIndex_start.csv / _last.csv.
func (p *PNE) ParseIndexFile(ctx context.Context, path string) (*FileResult, error) {
	res := newResult(path, model.VariantPNE)
	d, err := p.reader.ReadFile(path)
	if err != nil {
		return res, eris.Wrap(err, "pne: read index file")
	}
	res.noteDecode(d)

	set, err := readTable(ctx, path, d.Lines(), 0)
	if err != nil {
		return res, eris.Wrap(err, "pne: read index rows")
	}
	res.Skipped = set.Skipped
	if len(set.Rows) == 0 {
		return res, nil
	}

	names := make([]string, len(set.Rows[0]))
	for i := range names {
		if i < len(indexColumns) {
			names[i] = indexColumns[i]
		} else {
			names[i] = "Unknown_" + strconv.Itoa(i)
		}
	}
	f := frame.FromRows(names, set.Rows)
	coerceNumeric(f, names...)

	years, months, days := f.Floats("open_year"), f.Floats("open_month"), f.Floats("open_day")
	if years != nil && months != nil && days != nil {
		full := make([]float64, len(years))
		dates := make([]time.Time, len(years))
		for i, y := range years {
			if y < 100 {
				y += 2000
			}
			full[i] = y
			dates[i] = civilDate(y, months[i], days[i])
		}
		_ = f.Set(frame.NewFloatColumn("open_year_full", full))
		_ = f.Set(frame.NewTimeColumn("open_date", dates))
	}
	tagFile(f, filepath.Base(path))
	res.Frame = f
	return res, nil
}

func applyPNEConversions(f *frame.Frame) {
	for _, c := range pneConversions {
		raw := f.Floats(c.from)
		if raw == nil {
			continue
		}
		out := make([]float64, len(raw))
		for i, v := range raw {
			out[i] = v / c.scale
		}
		_ = f.Set(frame.NewFloatColumn(c.to, out))
	}

	if dates, clocks := f.Floats("Date_YYYYMMDD"), f.Floats("Time_centisec"); dates != nil && clocks != nil {
		ts := make([]time.Time, len(dates))
		for i := range dates {
			ts[i] = pneDatetime(dates[i], clocks[i])
		}
		_ = f.Set(frame.NewTimeColumn("Datetime", ts))
	}

	if days, cs := f.Floats("TotTime_day"), f.Floats("TotTime_centisec"); days != nil && cs != nil {
		out := make([]float64, len(days))
		for i := range days {
			out[i] = days[i]*86400 + cs[i]/100
		}
		_ = f.Set(frame.NewFloatColumn("TotTime_s", out))
	}

	addCodeNames(f, "Step_type", "Step_type_name", StepTypeNames)
	addCodeNames(f, "ChgDchg", "ChgDchg_name", ChgDchgNames)
}

func addCodeNames(f *frame.Frame, from, to string, names map[int]string) {
	codes := f.Floats(from)
	if codes == nil {
		return
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		if math.IsNaN(c) {
			continue
		}
		if n, ok := names[int(c)]; ok {
			out[i] = n
		} else {
			out[i] = "Unknown_" + strconv.Itoa(int(c))
		}
	}
	_ = f.Set(frame.NewStringColumn(to, out))
}

// pneDatetime combines a YYYYMMDD number with centiseconds since midnight.
func pneDatetime(yyyymmdd, centisec float64) time.Time {
	if math.IsNaN(yyyymmdd) || yyyymmdd <= 0 {
		return time.Time{}
	}
	n := int(yyyymmdd)
	day := civilDate(float64(n/10000), float64(n/100%100), float64(n%100))
	if day.IsZero() || math.IsNaN(centisec) {
		return day
	}
	return day.Add(time.Duration(centisec * float64(time.Second) / 100))
}

// civilDate builds a UTC date, returning the zero time for impossible dates.
func civilDate(y, m, d float64) time.Time {
	if math.IsNaN(y) || math.IsNaN(m) || math.IsNaN(d) {
		return time.Time{}
	}
	yi, mi, di := int(y), int(m), int(d)
	t := time.Date(yi, time.Month(mi), di, 0, 0, 0, 0, time.UTC)
	if t.Year() != yi || int(t.Month()) != mi || t.Day() != di {
		return time.Time{}
	}
	return t
}
