// Package export writes a standardized load to csv, parquet, avro, xlsx,
// sqlite or postgres, with a YAML manifest beside every export.
package export

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// Supported export formats.
const (
	FormatCSV      = "csv"
	FormatParquet  = "parquet"
	FormatAvro     = "avro"
	FormatXLSX     = "xlsx"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
)

const defaultTable = "measurements"

// Options selects the export target.
type Options struct {
	Format string
	// Path is the output file. For postgres it only locates the manifest.
	Path        string
	Table       string
	PostgresDSN string
	Validation  *model.ValidationResult
}

// Extension returns the file extension used for format.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case FormatSQLite:
		return ".db"
	case FormatPostgres:
		return ""
	default:
		return "." + strings.ToLower(format)
	}
}

// Write exports sd in opts.Format and writes the manifest. It returns the
// manifest that was written.
func Write(ctx context.Context, sd *model.StandardizedData, opts Options) (*Manifest, error) {
	if sd == nil || sd.Data == nil {
		return nil, eris.New("export: no data")
	}
	if opts.Path == "" {
		return nil, eris.New("export: output path is required")
	}
	if opts.Table == "" {
		opts.Table = defaultTable
	}
	format := strings.ToLower(opts.Format)
	start := time.Now()

	var (
		files []string
		err   error
	)
	switch format {
	case FormatCSV:
		files, err = CSV(sd, opts.Path)
	case FormatParquet:
		files, err = Parquet(sd, opts.Path)
	case FormatAvro:
		files, err = Avro(sd, opts.Path)
	case FormatXLSX:
		files, err = XLSX(sd, opts.Path)
	case FormatSQLite:
		files, err = SQLite(ctx, sd, opts.Path, opts.Table)
	case FormatPostgres:
		files, err = Postgres(ctx, sd, opts.PostgresDSN, opts.Table)
	default:
		return nil, eris.Errorf("export: unknown format %q", opts.Format)
	}
	if err != nil {
		return nil, err
	}

	m := NewManifest(sd, format, files, opts.Validation)
	if err := m.Save(ManifestPath(opts.Path)); err != nil {
		return nil, err
	}

	zap.L().Info("export complete",
		zap.String("format", format),
		zap.Strings("files", files),
		zap.Int("records", sd.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

// sidecarPath returns path with suffix inserted before its extension:
// out/run.csv + "_capacity" gives out/run_capacity.csv.
func sidecarPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

func hasRows(f *frame.Frame) bool {
	return f != nil && f.Len() > 0 && f.Width() > 0
}
