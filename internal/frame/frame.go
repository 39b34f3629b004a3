// Package frame provides a small column-oriented table used for cycler
// measurements. Float nulls are NaN, string nulls are "", time nulls are the
// zero time.
package frame

import (
	"math"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// TimeLayout is the layout used when a time column is rendered as text.
const TimeLayout = "2006-01-02 15:04:05.999999"

// Kind is the storage type of a column.
type Kind int

const (
	String Kind = iota
	Float
	Time
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case Time:
		return "time"
	default:
		return "string"
	}
}

// Column is a named, typed vector of values.
type Column struct {
	Name  string
	Kind  Kind
	strs  []string
	nums  []float64
	times []time.Time
}

// NewStringColumn builds a string column. The slice is not copied.
func NewStringColumn(name string, vals []string) *Column {
	return &Column{Name: name, Kind: String, strs: vals}
}

// NewFloatColumn builds a float column. The slice is not copied.
func NewFloatColumn(name string, vals []float64) *Column {
	return &Column{Name: name, Kind: Float, nums: vals}
}

// NewTimeColumn builds a time column. The slice is not copied.
func NewTimeColumn(name string, vals []time.Time) *Column {
	return &Column{Name: name, Kind: Time, times: vals}
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case Float:
		return len(c.nums)
	case Time:
		return len(c.times)
	default:
		return len(c.strs)
	}
}

// IsNull reports whether the i-th value is missing.
func (c *Column) IsNull(i int) bool {
	switch c.Kind {
	case Float:
		return math.IsNaN(c.nums[i])
	case Time:
		return c.times[i].IsZero()
	default:
		return c.strs[i] == ""
	}
}

// NullCount returns the number of missing values.
func (c *Column) NullCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			n++
		}
	}
	return n
}

// Floats returns the float values. String columns are parsed on the fly
// (unparseable values become NaN); time columns yield NaN.
func (c *Column) Floats() []float64 {
	switch c.Kind {
	case Float:
		return c.nums
	case String:
		out := make([]float64, len(c.strs))
		for i, s := range c.strs {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				v = math.NaN()
			}
			out[i] = v
		}
		return out
	default:
		out := make([]float64, len(c.times))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
}

// Strings returns the values rendered as text.
func (c *Column) Strings() []string {
	if c.Kind == String {
		return c.strs
	}
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Format(i)
	}
	return out
}

// Times returns the time values, or nil for non-time columns.
func (c *Column) Times() []time.Time {
	if c.Kind != Time {
		return nil
	}
	return c.times
}

// Format renders the i-th value as text; nulls render as "".
func (c *Column) Format(i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.Kind {
	case Float:
		return strconv.FormatFloat(c.nums[i], 'g', -1, 64)
	case Time:
		return c.times[i].Format(TimeLayout)
	default:
		return c.strs[i]
	}
}

// Value returns the i-th value as string, float64 or time.Time, or nil.
func (c *Column) Value(i int) any {
	if c.IsNull(i) {
		return nil
	}
	switch c.Kind {
	case Float:
		return c.nums[i]
	case Time:
		return c.times[i]
	default:
		return c.strs[i]
	}
}

func (c *Column) take(idx []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case Float:
		out.nums = make([]float64, len(idx))
		for j, i := range idx {
			out.nums[j] = c.nums[i]
		}
	case Time:
		out.times = make([]time.Time, len(idx))
		for j, i := range idx {
			out.times[j] = c.times[i]
		}
	default:
		out.strs = make([]string, len(idx))
		for j, i := range idx {
			out.strs[j] = c.strs[i]
		}
	}
	return out
}

func nullColumn(name string, kind Kind, n int) *Column {
	c := &Column{Name: name, Kind: kind}
	switch kind {
	case Float:
		c.nums = make([]float64, n)
		for i := range c.nums {
			c.nums[i] = math.NaN()
		}
	case Time:
		c.times = make([]time.Time, n)
	default:
		c.strs = make([]string, n)
	}
	return c
}

// Frame is an ordered set of equal-length columns.
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New returns an empty frame.
func New() *Frame {
	return &Frame{index: make(map[string]int)}
}

// FromColumns builds a frame from columns of equal length.
func FromColumns(cols ...*Column) (*Frame, error) {
	f := New()
	for _, c := range cols {
		if err := f.Set(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// FromRows builds a string frame from positional records. Short records are
// padded with nulls, extra fields are ignored.
func FromRows(names []string, rows [][]string) *Frame {
	f := New()
	f.rows = len(rows)
	for j, name := range names {
		vals := make([]string, len(rows))
		for i, r := range rows {
			if j < len(r) {
				vals[i] = r[j]
			}
		}
		f.index[name] = len(f.cols)
		f.cols = append(f.cols, NewStringColumn(name, vals))
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.cols) }

// Names returns column names in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order.
func (f *Frame) Columns() []*Column { return f.cols }

// Has reports whether the frame contains a column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column or nil.
func (f *Frame) Column(name string) *Column {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.cols[i]
}

// Floats returns the named column as floats, or nil if absent.
func (f *Frame) Floats(name string) []float64 {
	c := f.Column(name)
	if c == nil {
		return nil
	}
	return c.Floats()
}

// Strings returns the named column as text, or nil if absent.
func (f *Frame) Strings(name string) []string {
	c := f.Column(name)
	if c == nil {
		return nil
	}
	return c.Strings()
}

// Times returns the named time column, or nil if absent or not a time column.
func (f *Frame) Times(name string) []time.Time {
	c := f.Column(name)
	if c == nil {
		return nil
	}
	return c.Times()
}

// Set adds a column or replaces the column with the same name.
func (f *Frame) Set(c *Column) error {
	if len(f.cols) == 0 {
		f.rows = c.Len()
	} else if c.Len() != f.rows {
		return eris.Errorf("frame: column %q has %d values, frame has %d rows", c.Name, c.Len(), f.rows)
	}
	if i, ok := f.index[c.Name]; ok {
		f.cols[i] = c
		return nil
	}
	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// Drop removes the named columns; unknown names are ignored.
func (f *Frame) Drop(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := f.cols[:0]
	for _, c := range f.cols {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	f.cols = kept
	f.reindex()
}

// Rename renames a column. An existing column named to is replaced.
func (f *Frame) Rename(from, to string) {
	i, ok := f.index[from]
	if !ok || from == to {
		return
	}
	if _, exists := f.index[to]; exists {
		f.Drop(to)
		i = f.index[from]
	}
	f.cols[i].Name = to
	f.reindex()
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.cols))
	for i, c := range f.cols {
		f.index[c.Name] = i
	}
	if len(f.cols) == 0 {
		f.rows = 0
	}
}

// Take returns a new frame holding the given rows in the given order.
func (f *Frame) Take(idx []int) *Frame {
	out := New()
	out.rows = len(idx)
	for _, c := range f.cols {
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.take(idx))
	}
	return out
}

// Filter returns a new frame with the rows for which keep returns true.
func (f *Frame) Filter(keep func(i int) bool) *Frame {
	idx := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return f.Take(idx)
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	idx := make([]int, f.rows)
	for i := range idx {
		idx[i] = i
	}
	return f.Take(idx)
}

// RowIsEmpty reports whether every value in row i is null.
func (f *Frame) RowIsEmpty(i int) bool {
	for _, c := range f.cols {
		if !c.IsNull(i) {
			return false
		}
	}
	return true
}

// Concat stacks frames vertically. The result holds the union of columns in
// first-seen order; missing values are null and columns whose kinds disagree
// are stored as text.
func Concat(frames ...*Frame) *Frame {
	var (
		order []string
		kinds = make(map[string]Kind)
		mixed = make(map[string]bool)
		total int
	)
	for _, f := range frames {
		if f == nil {
			continue
		}
		total += f.rows
		for _, c := range f.cols {
			k, seen := kinds[c.Name]
			if !seen {
				order = append(order, c.Name)
				kinds[c.Name] = c.Kind
				continue
			}
			if k != c.Kind {
				mixed[c.Name] = true
			}
		}
	}

	out := New()
	out.rows = total
	for _, name := range order {
		kind := kinds[name]
		if mixed[name] {
			kind = String
		}
		col := nullColumn(name, kind, total)
		off := 0
		for _, f := range frames {
			if f == nil {
				continue
			}
			src := f.Column(name)
			if src != nil {
				switch kind {
				case Float:
					copy(col.nums[off:], src.nums)
				case Time:
					copy(col.times[off:], src.times)
				default:
					copy(col.strs[off:], src.Strings())
				}
			}
			off += f.rows
		}
		out.index[name] = len(out.cols)
		out.cols = append(out.cols, col)
	}
	return out
}
