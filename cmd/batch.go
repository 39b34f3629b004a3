package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var batchCmd = &cobra.Command{
	Use:   "batch [roots...]",
	Short: "Process many data roots concurrently",
	Long:  "Loads, validates and optionally exports every root given as an argument or listed in a YAML file. A failing root is logged and counted; it never stops the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		listPath, _ := cmd.Flags().GetString("list")
		jobs, err := batchJobs(args, listPath)
		if err != nil {
			return err
		}

		exportFmt, _ := cmd.Flags().GetString("export")
		outDir, _ := cmd.Flags().GetString("out-dir")
		if outDir == "" {
			outDir = cfg.Export.Dir
		}
		analyze, _ := cmd.Flags().GetBool("analyze")
		for i := range jobs {
			jobs[i].Validate = true
			jobs[i].Analyze = analyze
			jobs[i].ExportFormat = strings.ToLower(exportFmt)
			jobs[i].ExportDir = outDir
		}

		st := openStore(ctx, cfg)
		defer st.Close() //nolint:errcheck

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency < 1 {
			concurrency = cfg.Batch.Concurrency
		}
		sum, err := processBatch(ctx, jobs, concurrency, func(ctx context.Context, job rootJob) (*rootOutcome, error) {
			return processRoot(ctx, cfg, st, job)
		})
		if err != nil {
			return err
		}
		if sum.Failed > 0 {
			zap.L().Warn("batch finished with failures", zap.Int64("failed", sum.Failed))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().String("list", "", "YAML file listing roots")
	batchCmd.Flags().String("export", "", "export format for every root (csv, parquet, avro, xlsx, sqlite, postgres)")
	batchCmd.Flags().String("out-dir", "", "export directory (default export.dir)")
	batchCmd.Flags().Bool("analyze", false, "run every analysis for each root")
	batchCmd.Flags().Int("concurrency", 0, "roots processed at once (default batch.concurrency)")
	rootCmd.AddCommand(batchCmd)
}

// batchList is the YAML root list accepted by --list.
type batchList struct {
	Roots []batchRoot `yaml:"roots"`
}

// batchRoot is one listed root. A bare string in the list is a path.
type batchRoot struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// UnmarshalYAML accepts either a mapping or a bare path.
func (b *batchRoot) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		b.Path = n.Value
		return nil
	}
	type plain batchRoot
	return n.Decode((*plain)(b))
}

// loadBatchList reads a YAML root list.
func loadBatchList(path string) ([]batchRoot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read list %s", path)
	}
	var list batchList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, eris.Wrapf(err, "batch: parse list %s", path)
	}
	return list.Roots, nil
}

// batchJobs merges argument roots and listed roots, dropping blanks and
// repeated paths.
func batchJobs(args []string, listPath string) ([]rootJob, error) {
	var roots []batchRoot
	for _, a := range args {
		roots = append(roots, batchRoot{Path: a})
	}
	if listPath != "" {
		listed, err := loadBatchList(listPath)
		if err != nil {
			return nil, err
		}
		roots = append(roots, listed...)
	}

	seen := make(map[string]bool)
	var jobs []rootJob
	for _, r := range roots {
		p := strings.TrimSpace(r.Path)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		jobs = append(jobs, rootJob{Root: p, Format: r.Format})
	}
	if len(jobs) == 0 {
		return nil, eris.New("batch: no roots given (pass paths or --list)")
	}
	return jobs, nil
}

// rootFunc processes one root.
type rootFunc func(ctx context.Context, job rootJob) (*rootOutcome, error)

// batchSummary counts batch outcomes.
type batchSummary struct {
	Succeeded int64
	Failed    int64
}

// processBatch runs process over jobs with at most concurrency roots at
// once. Individual failures are logged and counted.
func processBatch(ctx context.Context, jobs []rootJob, concurrency int, process rootFunc) (batchSummary, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	zap.L().Info("processing batch",
		zap.Int("roots", len(jobs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, job := range jobs {
		g.Go(func() error {
			log := zap.L().With(zap.String("root", job.Root))
			if err := gctx.Err(); err != nil {
				failed.Add(1)
				log.Warn("root skipped", zap.Error(err))
				return nil
			}

			res, err := process(gctx, job)
			if err != nil {
				failed.Add(1)
				log.Error("root failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			fields := []zap.Field{
				zap.String("format", string(res.Data.Format)),
				zap.Int("records", res.Data.Len()),
			}
			if res.Validation != nil {
				fields = append(fields, zap.Float64("quality_score", res.Validation.QualityScore))
			}
			log.Info("root complete", fields...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return batchSummary{}, eris.Wrap(err, "batch processing")
	}

	sum := batchSummary{Succeeded: succeeded.Load(), Failed: failed.Load()}
	zap.L().Info("batch complete",
		zap.Int64("succeeded", sum.Succeeded),
		zap.Int64("failed", sum.Failed),
	)
	return sum, nil
}
