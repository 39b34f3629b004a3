package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/cycler-cli/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate <root>",
	Short: "Load a data root and score its data quality",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st := openStore(ctx, cfg)
		defer st.Close() //nolint:errcheck

		hint, _ := cmd.Flags().GetString("format")
		res, err := processRoot(ctx, cfg, st, rootJob{Root: args[0], Format: hint, Validate: true})
		if err != nil {
			return err
		}

		formatValidation(os.Stdout, res.Validation)
		strict, _ := cmd.Flags().GetBool("strict")
		if strict && !res.Validation.IsValid {
			return fmt.Errorf("validation failed: quality score %.1f%%", res.Validation.QualityScore)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().String("format", "", "format hint (toyo, toyo1, toyo2, pne)")
	validateCmd.Flags().Bool("strict", false, "exit non-zero when the data is not valid")
	rootCmd.AddCommand(validateCmd)
}

// formatValidation writes the summary line followed by issues, warnings and
// recommendations.
func formatValidation(out io.Writer, v *model.ValidationResult) {
	_, _ = fmt.Fprintln(out, v.Summary())
	sections := []struct {
		title string
		items []string
	}{
		{"Issues", v.Issues},
		{"Warnings", v.Warnings},
		{"Recommendations", v.Recommendations},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s:\n", s.title)
		for _, item := range s.items {
			_, _ = fmt.Fprintf(out, "  - %s\n", item)
		}
	}
}
