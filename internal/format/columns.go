package format

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/cycler-cli/internal/frame"
)

var (
	nonWordRun      = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	underscoreRun   = regexp.MustCompile(`_+`)
	placeholderName = regexp.MustCompile(`^Col_*\d+$`)
	bareInteger     = regexp.MustCompile(`^\d+$`)
)

// CleanColumnName normalizes a vendor column name: brackets and other
// punctuation become single underscores, so "Voltage[V]" becomes "Voltage_V".
// Cleaning an already clean name returns it unchanged.
func CleanColumnName(name string) string {
	s := strings.TrimSpace(name)
	s = nonWordRun.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// IsPlaceholderColumn reports whether a cleaned name is a ColN filler.
func IsPlaceholderColumn(name string) bool {
	return placeholderName.MatchString(name)
}

// IsBareInteger reports whether a cleaned name is only digits.
func IsBareInteger(name string) bool {
	return bareInteger.MatchString(name)
}

// CleanColumns cleans names and keeps them unique by suffixing repeats with
// _2, _3 and so on.
func CleanColumns(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))
	for i, n := range names {
		c := CleanColumnName(n)
		if c == "" {
			c = "Col" + strconv.Itoa(i)
		}
		seen[c]++
		if k := seen[c]; k > 1 {
			c = c + "_" + strconv.Itoa(k)
			seen[c]++
		}
		out[i] = c
	}
	return out
}

// dropFillerColumns removes placeholder, bare-integer and all-null columns.
// PNE frames never pass through here since their positional names matter.
func dropFillerColumns(f *frame.Frame) []string {
	var drop []string
	for _, c := range f.Columns() {
		if IsPlaceholderColumn(c.Name) || IsBareInteger(c.Name) || c.NullCount() == c.Len() {
			drop = append(drop, c.Name)
		}
	}
	f.Drop(drop...)
	return drop
}

// dropEmptyRows removes rows whose every value is null.
func dropEmptyRows(f *frame.Frame) *frame.Frame {
	return f.Filter(func(i int) bool { return !f.RowIsEmpty(i) })
}

// ParseNumber coerces vendor text to a float. Blank or malformed values
// become NaN; a leading '+' and surrounding quotes are accepted.
func ParseNumber(s string) float64 {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// coerceNumeric converts the named string columns to floats in place.
func coerceNumeric(f *frame.Frame, names ...string) {
	for _, name := range names {
		c := f.Column(name)
		if c == nil || c.Kind != frame.String {
			continue
		}
		raw := c.Strings()
		vals := make([]float64, len(raw))
		for i, s := range raw {
			vals[i] = ParseNumber(s)
		}
		_ = f.Set(frame.NewFloatColumn(name, vals))
	}
}

// ParseClock converts "HH:MM:SS" (hours may exceed 24) to seconds, or NaN.
func ParseClock(s string) float64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return math.NaN()
	}
	total := 0.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return math.NaN()
		}
		total = total*60 + v
	}
	return total
}

var dateTimeLayouts = []string{
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	"2006/1/2 15:04:05",
	"2006/01/02 15:04:05.000",
}

// ParseDateTime combines a vendor date and time-of-day. Unparseable input
// yields the zero time.
func ParseDateTime(date, clock string) time.Time {
	s := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// addDatetime builds a Datetime column from Date and Time text columns.
func addDatetime(f *frame.Frame) bool {
	dates, clocks := f.Strings("Date"), f.Strings("Time")
	if dates == nil || clocks == nil {
		return false
	}
	ts := make([]time.Time, len(dates))
	for i := range dates {
		ts[i] = ParseDateTime(dates[i], clocks[i])
	}
	_ = f.Set(frame.NewTimeColumn("Datetime", ts))
	return true
}

// tagFile adds a constant FileName provenance column.
func tagFile(f *frame.Frame, name string) {
	vals := make([]string, f.Len())
	for i := range vals {
		vals[i] = name
	}
	_ = f.Set(frame.NewStringColumn("FileName", vals))
}
