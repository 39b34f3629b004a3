package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/cycler-cli/internal/format"
	"github.com/sells-group/cycler-cli/internal/loader"
	"github.com/sells-group/cycler-cli/internal/model"
)

var detectCmd = &cobra.Command{
	Use:   "detect <root>",
	Short: "Detect the cycler format of a data root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loader.OptionsFromConfig(cfg.Loader)
		if err != nil {
			return err
		}
		hint, _ := cmd.Flags().GetString("format")
		if hint != "" {
			if opts.Format, err = model.ParseFormat(hint); err != nil {
				return err
			}
		}

		det, err := loader.New(opts).Detect(args[0])
		if err != nil {
			return err
		}
		formatDetection(os.Stdout, args[0], det)
		return nil
	},
}

func init() {
	detectCmd.Flags().String("format", "", "format hint (toyo, toyo1, toyo2, pne); skips scoring")
	rootCmd.AddCommand(detectCmd)
}

// formatDetection writes the detected format and per-family scores to w.
func formatDetection(out io.Writer, root string, det *format.Detection) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Root:\t%s\n", root)
	_, _ = fmt.Fprintf(w, "Format:\t%s\n", det.Format)
	if det.Hinted {
		_, _ = fmt.Fprintln(w, "Source:\thint")
	}

	families := make([]string, 0, len(det.Scores))
	for f := range det.Scores {
		families = append(families, string(f))
	}
	sort.Strings(families)
	for _, f := range families {
		_, _ = fmt.Fprintf(w, "Score %s:\t%d\n", f, det.Scores[model.Format(f)])
	}
	_ = w.Flush()
}
