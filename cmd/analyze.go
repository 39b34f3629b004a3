package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <root>",
	Short: "Load, validate and analyze a data root",
	Long:  "Runs every analysis over a data root and prints the text report, or the raw results as YAML with --yaml.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st := openStore(ctx, cfg)
		defer st.Close() //nolint:errcheck

		hint, _ := cmd.Flags().GetString("format")
		res, err := processRoot(ctx, cfg, st, rootJob{Root: args[0], Format: hint, Validate: true, Analyze: true})
		if err != nil {
			return err
		}

		asYAML, _ := cmd.Flags().GetBool("yaml")
		if asYAML {
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(res.Analyzer.Results()); err != nil {
				return err
			}
			return enc.Close()
		}

		report, err := res.Analyzer.Report(ctx, res.Validation)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, report)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("format", "", "format hint (toyo, toyo1, toyo2, pne)")
	analyzeCmd.Flags().Bool("yaml", false, "print analysis results as YAML")
	rootCmd.AddCommand(analyzeCmd)
}
