// Package format detects cycler vendor formats and parses their files.
package format

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
	"github.com/sells-group/cycler-cli/internal/textio"
)

// Handler parses the files of one vendor variant.
type Handler interface {
	// Variant returns the variant this handler parses.
	Variant() model.Variant
	// Detect scores directory evidence that root holds this variant's family.
	Detect(root string) (int, error)
	// ColumnMap returns raw column names for a header (or, for headerless
	// formats, for a row of that width).
	ColumnMap(header []string) []string
	// ParseFile parses one data file.
	ParseFile(ctx context.Context, path string, opts ParseOptions) (*FileResult, error)
	// ParseCapacityLog parses a cycle-summary log. Formats without one
	// return an empty frame.
	ParseCapacityLog(ctx context.Context, path string) (*FileResult, error)
}

// ParseOptions tunes a single ParseFile call.
type ParseOptions struct {
	// HeaderLine is the header index found in an earlier file of the same
	// channel; -1 locates it in this file.
	HeaderLine int
	// DefaultHeaderLine is used when no line of the file looks like a
	// header. Zero means the package DefaultHeaderLine.
	DefaultHeaderLine int
}

// FileResult is the parsed content of one file. Frame is never nil, even
// when an error is returned.
type FileResult struct {
	Path            string
	Frame           *frame.Frame
	Variant         model.Variant
	Encoding        string
	Replaced        bool
	HeaderLine      int
	HeaderRelocated bool
	Preamble        string
	Skipped         int
}

func newResult(path string, v model.Variant) *FileResult {
	return &FileResult{Path: path, Frame: frame.New(), Variant: v, HeaderLine: -1}
}

func (r *FileResult) noteDecode(d *textio.Decoded) {
	r.Encoding = d.Encoding
	r.Replaced = d.Replaced
	if d.Replaced {
		zap.L().Warn("no encoding matched, decoded with replacement",
			zap.String("file", r.Path),
			zap.Int("attempts", len(d.Attempts)),
		)
	}
}

// readTable reads delimited body lines, skipping malformed rows. When
// fieldCount is zero the most common row width is expected.
func readTable(ctx context.Context, path string, body []string, fieldCount int) (*textio.RowSet, error) {
	name := filepath.Base(path)
	return textio.ReadRows(ctx, strings.NewReader(strings.Join(body, "\n")), textio.RowOptions{
		TrimSpace:   true,
		FieldCount:  fieldCount,
		CommonWidth: fieldCount == 0,
		OnSkip: func(line int, err error) {
			zap.L().Debug("skipping malformed row",
				zap.String("file", name),
				zap.Int("line", line),
				zap.Error(err),
			)
		},
	})
}

func firstNonBlank(lines []string) string {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return strings.TrimSpace(l)
		}
	}
	return ""
}
