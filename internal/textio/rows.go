package textio

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// RowOptions configures the delimited-row reader.
type RowOptions struct {
	Delimiter  rune // default ','
	HasHeader  bool // first well-formed record is the header
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool

	// FieldCount is the expected number of fields per row. When zero the
	// header's width is used, or the first row's width without a header.
	// A negative count accepts every width.
	FieldCount int

	// CommonWidth makes ReadRows keep only rows of the most frequent width
	// when there is no header and FieldCount is zero, so a malformed first
	// row cannot set the width. Ties go to the wider row.
	CommonWidth bool

	// OnSkip is called for every malformed row that is dropped. It runs on
	// the reader goroutine.
	OnSkip func(line int, err error)
}

// StreamRows reads delimited text and sends well-formed rows to a channel.
// Rows whose field count differs from the expected width, and rows the csv
// reader rejects, are skipped and reported through OnSkip. The header row,
// when HasHeader is set, is sent first on the header channel.
// All channels are closed when processing completes.
func StreamRows(ctx context.Context, r io.Reader, opts RowOptions) (<-chan []string, <-chan []string, <-chan error) {
	headerCh := make(chan []string, 1)
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(headerCh)
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // width is checked below

		want := opts.FieldCount
		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "rows: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if errors.As(err, &pe) {
					if opts.OnSkip != nil {
						opts.OnSkip(pe.Line, err)
					}
					continue
				}
				errCh <- eris.Wrap(err, "rows: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first {
				first = false
				if want == 0 {
					want = len(record)
				}
				if opts.HasHeader {
					headerCh <- record
					continue
				}
			}

			if want >= 0 && len(record) != want {
				if opts.OnSkip != nil {
					line, _ := reader.FieldPos(0)
					opts.OnSkip(line, eris.Errorf("expected %d fields, got %d", want, len(record)))
				}
				continue
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "rows: context cancelled")
				return
			}
		}
	}()

	return headerCh, rowCh, errCh
}

// RowSet is a fully read delimited table.
type RowSet struct {
	Header  []string
	Rows    [][]string
	Skipped int
}

// ReadRows drains StreamRows into memory.
func ReadRows(ctx context.Context, r io.Reader, opts RowOptions) (*RowSet, error) {
	set := &RowSet{}
	onSkip := opts.OnSkip
	opts.OnSkip = func(line int, err error) {
		set.Skipped++
		if onSkip != nil {
			onSkip(line, err)
		}
	}

	common := opts.CommonWidth && opts.FieldCount == 0 && !opts.HasHeader
	if common {
		opts.FieldCount = -1
	}

	headerCh, rowCh, errCh := StreamRows(ctx, r, opts)
	for row := range rowCh {
		set.Rows = append(set.Rows, row)
	}
	if h, ok := <-headerCh; ok {
		set.Header = h
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if common {
		set.Rows = keepWidth(set.Rows, commonWidth(set.Rows), opts.OnSkip)
	}
	return set, nil
}

// commonWidth returns the most frequent row width, preferring the wider on
// ties.
func commonWidth(rows [][]string) int {
	counts := make(map[int]int)
	best, bestN := 0, 0
	for _, r := range rows {
		counts[len(r)]++
	}
	for w, n := range counts {
		if n > bestN || (n == bestN && w > best) {
			best, bestN = w, n
		}
	}
	return best
}

// keepWidth drops rows whose width is not want, reporting each by its
// 1-based record number.
func keepWidth(rows [][]string, want int, onSkip func(int, error)) [][]string {
	out := rows[:0]
	for i, r := range rows {
		if len(r) != want {
			onSkip(i+1, eris.Errorf("expected %d fields, got %d", want, len(r)))
			continue
		}
		out = append(out, r)
	}
	return out
}

// SplitFields splits a single delimited line into fields.
func SplitFields(line string, delimiter rune) []string {
	reader := csv.NewReader(strings.NewReader(line))
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	record, err := reader.Read()
	if err != nil {
		return strings.Split(line, string(orComma(delimiter)))
	}
	return record
}

func orComma(d rune) rune {
	if d == 0 {
		return ','
	}
	return d
}
