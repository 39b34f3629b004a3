package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cycler-cli/internal/analysis"
	"github.com/sells-group/cycler-cli/internal/model"
)

var loadCmd = &cobra.Command{
	Use:   "load <root>",
	Short: "Load a data root into the standardized table",
	Long:  "Loads every channel of a data root, prints a per-channel summary and optionally exports the table. --out alone infers the export format from its extension.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st := openStore(ctx, cfg)
		defer st.Close() //nolint:errcheck

		hint, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")
		exportFmt, _ := cmd.Flags().GetString("export")

		job := rootJob{
			Root:         args[0],
			Format:       hint,
			ExportFormat: resolveExportFormat(exportFmt, outPath, cfg.Export.Format),
			ExportPath:   outPath,
			ExportDir:    cfg.Export.Dir,
		}
		res, err := processRoot(ctx, cfg, st, job)
		if err != nil {
			return err
		}

		formatLoadSummary(os.Stdout, res.Data)
		if res.Manifest != nil {
			fmt.Fprintf(os.Stdout, "\nExported %s: %s\n", res.Manifest.ExportFormat, strings.Join(res.Manifest.Files, ", "))
		}
		zap.L().Info("load command complete", zap.String("run_id", res.Run.ID))
		return nil
	},
}

func init() {
	loadCmd.Flags().String("format", "", "format hint (toyo, toyo1, toyo2, pne)")
	loadCmd.Flags().String("out", "", "export file path")
	loadCmd.Flags().String("export", "", "export format (csv, parquet, avro, xlsx, sqlite, postgres)")
	rootCmd.AddCommand(loadCmd)
}

// resolveExportFormat picks the export format: the flag, else the --out
// extension, else the configured default when --out is set. Empty disables
// export.
func resolveExportFormat(flag, outPath, fallback string) string {
	if flag != "" {
		return strings.ToLower(flag)
	}
	if outPath == "" {
		return ""
	}
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(outPath), ".")); ext {
	case "csv", "parquet", "avro", "xlsx", "sqlite":
		return ext
	case "db":
		return "sqlite"
	}
	return strings.ToLower(fallback)
}

// formatLoadSummary writes load metadata and a per-channel table to w.
func formatLoadSummary(out io.Writer, sd *model.StandardizedData) {
	md := sd.Metadata
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Load ID:\t%s\n", md.LoadID)
	_, _ = fmt.Fprintf(w, "Format:\t%s\n", sd.Format)
	_, _ = fmt.Fprintf(w, "Records:\t%d\n", md.RecordCount)
	_, _ = fmt.Fprintf(w, "Files:\t%d (%d failed)\n", md.TotalFiles, md.FailedFiles)
	if md.HasCapacityData {
		_, _ = fmt.Fprintf(w, "Capacity records:\t%d\n", md.CapacityRecords)
	}
	if md.DateRange != nil {
		_, _ = fmt.Fprintf(w, "Date range:\t%s .. %s\n",
			md.DateRange.Start.Format("2006-01-02 15:04:05"), md.DateRange.End.Format("2006-01-02 15:04:05"))
	}
	if len(md.MissingColumns) > 0 {
		_, _ = fmt.Fprintf(w, "Missing columns:\t%s\n", strings.Join(md.MissingColumns, ", "))
	}
	_ = w.Flush()

	stats := analysis.ChannelSummary(sd.Data)
	if len(stats) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHANNEL\tROWS\tCYCLES\tVOLTAGE\tDURATION")
	_, _ = fmt.Fprintln(w, "-------\t----\t------\t-------\t--------")
	for _, s := range stats {
		volts := "-"
		if s.VoltageMin != nil && s.VoltageMax != nil {
			volts = fmt.Sprintf("%.3f-%.3f", *s.VoltageMin, *s.VoltageMax)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", s.Channel, s.Rows, s.Cycles, volts, s.Duration.String())
	}
	_ = w.Flush()
}
