package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cycler-cli/internal/analysis"
	"github.com/sells-group/cycler-cli/internal/config"
	"github.com/sells-group/cycler-cli/internal/export"
	"github.com/sells-group/cycler-cli/internal/loader"
	"github.com/sells-group/cycler-cli/internal/model"
	"github.com/sells-group/cycler-cli/internal/quality"
	"github.com/sells-group/cycler-cli/internal/store"
)

// Phase names recorded in run history.
const (
	phaseLoad     = "load"
	phaseValidate = "validate"
	phaseAnalyze  = "analyze"
	phaseExport   = "export"
)

// rootJob describes what to do with one data root.
type rootJob struct {
	Root     string
	Format   string // hint; empty uses loader.format from config
	Validate bool
	Analyze  bool
	// ExportFormat enables export. ExportPath wins over ExportDir.
	ExportFormat string
	ExportPath   string
	ExportDir    string
}

// rootOutcome is everything produced for one root.
type rootOutcome struct {
	Run        *model.Run
	Data       *model.StandardizedData
	Validation *model.ValidationResult
	Analyzer   *analysis.Analyzer
	Manifest   *export.Manifest
	Result     *model.RunResult
}

// processRoot runs load, then the optional validate, analyze and export
// phases for one root, recording the run and each phase in st. Run history
// failures are logged and never fail the root.
func processRoot(ctx context.Context, c *config.Config, st store.Store, job rootJob) (*rootOutcome, error) {
	log := zap.L().With(zap.String("root", job.Root))

	hint := job.Format
	if hint == "" {
		hint = c.Loader.Format
	}
	opts, err := loader.OptionsFromConfig(c.Loader)
	if err != nil {
		return nil, err
	}
	if opts.Format, err = model.ParseFormat(hint); err != nil {
		return nil, eris.Wrap(err, "format hint")
	}

	run, err := st.CreateRun(ctx, job.Root, opts.Format)
	if err != nil {
		log.Warn("run history unavailable", zap.Error(err))
		run, _ = store.Nop{}.CreateRun(ctx, job.Root, opts.Format)
	}
	out := &rootOutcome{Run: run, Result: &model.RunResult{}}
	rec := &phaseRecorder{st: st, runID: run.ID, log: log}

	fail := func(err error) (*rootOutcome, error) {
		out.Result.Error = err.Error()
		if ferr := st.FailRun(ctx, run.ID, err); ferr != nil {
			log.Warn("record failed run", zap.Error(ferr))
		}
		return out, err
	}

	rec.status(ctx, model.RunStatusLoading)
	err = rec.phase(ctx, phaseLoad, out.Result, func() (map[string]any, error) {
		sd, err := loader.New(opts).Load(ctx, job.Root)
		if err != nil {
			return nil, err
		}
		out.Data = sd
		return map[string]any{
			"records":      sd.Metadata.RecordCount,
			"channels":     len(sd.Metadata.Channels),
			"failed_files": sd.Metadata.FailedFiles,
		}, nil
	})
	if err != nil {
		return fail(err)
	}
	sd := out.Data
	out.Result.LoadID = sd.Metadata.LoadID
	out.Result.Format = sd.Format
	out.Result.Records = sd.Metadata.RecordCount
	out.Result.Channels = len(sd.Metadata.Channels)
	out.Result.FailedFiles = sd.Metadata.FailedFiles

	if job.Validate || job.Analyze || job.ExportFormat != "" {
		rec.status(ctx, model.RunStatusValidating)
		_ = rec.phase(ctx, phaseValidate, out.Result, func() (map[string]any, error) {
			v := quality.New(c.Validation).Validate(sd)
			out.Validation = v
			return map[string]any{"quality_score": v.QualityScore, "is_valid": v.IsValid}, nil
		})
		v := out.Validation
		out.Result.QualityScore = v.QualityScore
		out.Result.IsValid = v.IsValid
		out.Result.Issues = len(v.Issues)
		out.Result.Warnings = len(v.Warnings)
	}

	if job.Analyze {
		rec.status(ctx, model.RunStatusAnalyzing)
		err = rec.phase(ctx, phaseAnalyze, out.Result, func() (map[string]any, error) {
			a := analysis.New(sd, c.Analysis)
			results, err := a.RunAll(ctx)
			if err != nil {
				return nil, err
			}
			out.Analyzer = a
			return map[string]any{"analyses": len(results)}, nil
		})
		if err != nil {
			return fail(err)
		}
	}

	if job.ExportFormat != "" {
		rec.status(ctx, model.RunStatusExporting)
		path := job.ExportPath
		if path == "" {
			path = exportPath(job.ExportDir, job.Root, sd.Metadata.LoadID, job.ExportFormat)
		}
		err = rec.phase(ctx, phaseExport, out.Result, func() (map[string]any, error) {
			m, err := export.Write(ctx, sd, export.Options{
				Format:      job.ExportFormat,
				Path:        path,
				Table:       c.Export.Table,
				PostgresDSN: c.Export.PostgresDSN,
				Validation:  out.Validation,
			})
			if err != nil {
				return nil, err
			}
			out.Manifest = m
			return map[string]any{"format": job.ExportFormat, "files": len(m.Files)}, nil
		})
		if err != nil {
			return fail(err)
		}
		out.Result.ExportPath = path
	}

	if err := st.UpdateRunResult(ctx, run.ID, out.Result); err != nil {
		log.Warn("record run result", zap.Error(err))
	}
	return out, nil
}

// exportPath names an export file in dir after the root's base name and
// the first block of the load id.
func exportPath(dir, root, loadID, format string) string {
	if dir == "" {
		dir = "."
	}
	base := filepath.Base(filepath.Clean(root))
	if base == "." || base == string(filepath.Separator) {
		base = "cycler"
	}
	if id, _, ok := strings.Cut(loadID, "-"); ok {
		loadID = id
	}
	return filepath.Join(dir, base+"-"+loadID+export.Extension(format))
}

// phaseRecorder writes phase rows for one run and collects their results.
type phaseRecorder struct {
	st    store.Store
	runID string
	log   *zap.Logger
}

func (p *phaseRecorder) status(ctx context.Context, s model.RunStatus) {
	if err := p.st.UpdateRunStatus(ctx, p.runID, s); err != nil {
		p.log.Warn("record run status", zap.String("status", string(s)), zap.Error(err))
	}
}

// phase runs fn as a named phase and appends its result to res.
func (p *phaseRecorder) phase(ctx context.Context, name string, res *model.RunResult, fn func() (map[string]any, error)) error {
	ph, err := p.st.CreatePhase(ctx, p.runID, name)
	if err != nil {
		p.log.Warn("record phase start", zap.String("phase", name), zap.Error(err))
	}

	start := time.Now()
	meta, fnErr := fn()
	pr := model.PhaseResult{
		Name:     name,
		Status:   model.PhaseStatusComplete,
		Duration: time.Since(start).Milliseconds(),
		Metadata: meta,
	}
	if fnErr != nil {
		pr.Status = model.PhaseStatusFailed
		pr.Error = fnErr.Error()
	}
	res.Phases = append(res.Phases, pr)

	if ph != nil {
		if err := p.st.CompletePhase(ctx, ph.ID, &pr); err != nil {
			p.log.Warn("record phase result", zap.String("phase", name), zap.Error(err))
		}
	}
	p.log.Debug("phase complete", zap.String("phase", name), zap.String("status", string(pr.Status)), zap.Int64("duration_ms", pr.Duration))
	return fnErr
}

// openStore opens the configured run history store, falling back to a
// store that records nothing when it cannot be opened.
func openStore(ctx context.Context, c *config.Config) store.Store {
	st, err := store.Open(ctx, c.Store)
	if err != nil {
		zap.L().Warn("run history disabled", zap.String("driver", c.Store.Driver), zap.Error(err))
		return store.Nop{}
	}
	return st
}
