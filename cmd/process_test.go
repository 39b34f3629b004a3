package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cycler-cli/internal/config"
	"github.com/sells-group/cycler-cli/internal/export"
	"github.com/sells-group/cycler-cli/internal/format/formattest"
	"github.com/sells-group/cycler-cli/internal/model"
	"github.com/sells-group/cycler-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), config.StoreConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "runs.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func TestProcessRoot_FullRun(t *testing.T) {
	root := t.TempDir()
	formattest.WriteToyoRoot(t, root, "93", 3, 10, false)
	outDir := t.TempDir()
	st := newTestStore(t)
	ctx := context.Background()

	res, err := processRoot(ctx, config.Defaults(), st, rootJob{
		Root:         root,
		Validate:     true,
		Analyze:      true,
		ExportFormat: export.FormatCSV,
		ExportDir:    outDir,
	})
	require.NoError(t, err)

	assert.Equal(t, model.FormatToyo, res.Data.Format)
	assert.Equal(t, 30, res.Data.Len())
	require.NotNil(t, res.Validation)
	require.NotNil(t, res.Analyzer)
	_, ok := res.Analyzer.Result(model.AnalysisBasicStatistics)
	assert.True(t, ok)
	require.NotNil(t, res.Manifest)
	assert.FileExists(t, res.Result.ExportPath)
	assert.FileExists(t, export.ManifestPath(res.Result.ExportPath))

	names := make([]string, len(res.Result.Phases))
	for i, p := range res.Result.Phases {
		names[i] = p.Name
		assert.Equal(t, model.PhaseStatusComplete, p.Status, p.Name)
	}
	assert.Equal(t, []string{phaseLoad, phaseValidate, phaseAnalyze, phaseExport}, names)

	run, err := st.GetRun(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, model.FormatToyo, run.Format)
	require.NotNil(t, run.Result)
	assert.Equal(t, 30, run.Result.Records)
	assert.Equal(t, res.Data.Metadata.LoadID, run.Result.LoadID)

	phases, err := st.ListPhases(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, phases, 4)
}

func TestProcessRoot_LoadOnly(t *testing.T) {
	root := t.TempDir()
	formattest.WritePNERoot(t, root, "M01Ch003[003]", 2, 5)

	res, err := processRoot(context.Background(), config.Defaults(), store.Nop{}, rootJob{Root: root})
	require.NoError(t, err)
	assert.Equal(t, model.FormatPNE, res.Data.Format)
	assert.Nil(t, res.Validation)
	assert.Nil(t, res.Analyzer)
	require.Len(t, res.Result.Phases, 1)
	assert.Equal(t, phaseLoad, res.Result.Phases[0].Name)
}

func TestProcessRoot_MissingRoot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res, err := processRoot(ctx, config.Defaults(), st, rootJob{Root: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Result.Phases, 1)
	assert.Equal(t, model.PhaseStatusFailed, res.Result.Phases[0].Status)

	run, err := st.GetRun(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.NotNil(t, run.Result)
	assert.NotEmpty(t, run.Result.Error)
}

func TestProcessRoot_BadHint(t *testing.T) {
	_, err := processRoot(context.Background(), config.Defaults(), store.Nop{}, rootJob{Root: t.TempDir(), Format: "maccor"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format hint")
}

func TestExportPath(t *testing.T) {
	tests := []struct {
		name   string
		dir    string
		root   string
		loadID string
		format string
		want   string
	}{
		{"csv", "out", "/data/cell-01", "0a1b2c3d-aaaa-bbbb", "csv", filepath.Join("out", "cell-01-0a1b2c3d.csv")},
		{"sqlite", "out", "/data/cell-01/", "0a1b2c3d-aaaa", "sqlite", filepath.Join("out", "cell-01-0a1b2c3d.db")},
		{"default dir", "", "/data/x", "id", "parquet", filepath.Join(".", "x-id.parquet")},
		{"postgres", "out", "/data/x", "id-1", "postgres", filepath.Join("out", "x-id")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exportPath(tt.dir, tt.root, tt.loadID, tt.format))
		})
	}
}

func TestResolveExportFormat(t *testing.T) {
	tests := []struct {
		flag, out, fallback, want string
	}{
		{"", "", "csv", ""},
		{"Parquet", "", "csv", "parquet"},
		{"", "run.xlsx", "csv", "xlsx"},
		{"", "run.db", "csv", "sqlite"},
		{"", "run.out", "avro", "avro"},
		{"csv", "run.parquet", "avro", "csv"},
	}
	for _, tt := range tests {
		t.Run(tt.flag+"|"+tt.out, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveExportFormat(tt.flag, tt.out, tt.fallback))
		})
	}
}
