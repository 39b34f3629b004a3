package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cycler-cli/internal/config"
	"github.com/sells-group/cycler-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "/data/cell-01", model.FormatToyo)
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusQueued, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, "/data/cell-01", got.Root)
		assert.Equal(t, model.FormatToyo, got.Format)
		assert.Equal(t, model.RunStatusQueued, got.Status)
		assert.Nil(t, got.Result)
	})

	t.Run("UpdateRunStatus", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "/data/cell-02", "")
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusLoading))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusLoading, got.Status)
	})

	t.Run("UpdateRunStatus_NotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusLoading)
		require.Error(t, err)
		assert.True(t, eris.Is(err, model.ErrNotFound))
	})

	t.Run("UpdateRunResult", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "/data/cell-03", "")
		require.NoError(t, err)

		result := &model.RunResult{
			LoadID:       "load-1",
			Format:       model.FormatPNE,
			Records:      1200,
			Channels:     2,
			QualityScore: 97.5,
			IsValid:      true,
			Phases: []model.PhaseResult{
				{Name: "load", Status: model.PhaseStatusComplete, Duration: 42},
			},
		}
		require.NoError(t, s.UpdateRunResult(ctx, run.ID, result))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusComplete, got.Status)
		assert.Equal(t, model.FormatPNE, got.Format)
		require.NotNil(t, got.Result)
		assert.Equal(t, 1200, got.Result.Records)
		assert.InDelta(t, 97.5, got.Result.QualityScore, 1e-9)
		require.Len(t, got.Result.Phases, 1)
		assert.Equal(t, "load", got.Result.Phases[0].Name)
	})

	t.Run("FailRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "/data/cell-04", model.FormatToyo)
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, run.ID, eris.New("no channel folders")))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.Equal(t, model.FormatToyo, got.Format)
		require.NotNil(t, got.Result)
		assert.Contains(t, got.Result.Error, "no channel folders")
	})

	t.Run("GetRun_NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, eris.Is(err, model.ErrNotFound))
	})

	t.Run("ListRuns", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateRun(ctx, "/data/a", "")
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, "/data/b", "")
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, "/data/a", "")
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunStatus(ctx, a.ID, model.RunStatusFailed))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		byRoot, err := s.ListRuns(ctx, RunFilter{Root: "/data/a"})
		require.NoError(t, err)
		assert.Len(t, byRoot, 2)

		failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, a.ID, failed[0].ID)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		offset, err := s.ListRuns(ctx, RunFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, offset, 1)
	})

	t.Run("Phases", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "/data/cell-05", "")
		require.NoError(t, err)

		load, err := s.CreatePhase(ctx, run.ID, "load")
		require.NoError(t, err)
		assert.Equal(t, model.PhaseStatusRunning, load.Status)

		require.NoError(t, s.CompletePhase(ctx, load.ID, &model.PhaseResult{
			Name:     "load",
			Status:   model.PhaseStatusComplete,
			Duration: 120,
			Metadata: map[string]any{"files": float64(3)},
		}))
		_, err = s.CreatePhase(ctx, run.ID, "validate")
		require.NoError(t, err)

		phases, err := s.ListPhases(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, phases, 2)

		byName := map[string]model.RunPhase{}
		for _, p := range phases {
			byName[p.Name] = p
		}
		assert.Equal(t, model.PhaseStatusComplete, byName["load"].Status)
		require.NotNil(t, byName["load"].Result)
		assert.Equal(t, int64(120), byName["load"].Result.Duration)
		assert.Equal(t, float64(3), byName["load"].Result.Metadata["files"])
		assert.Equal(t, model.PhaseStatusRunning, byName["validate"].Status)
		assert.Nil(t, byName["validate"].Result)
	})

	t.Run("CompletePhase_NotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.CompletePhase(context.Background(), "missing", &model.PhaseResult{Status: model.PhaseStatusComplete})
		require.Error(t, err)
		assert.True(t, eris.Is(err, model.ErrNotFound))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		st, err := Open(ctx, config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "runs.db")})
		require.NoError(t, err)
		defer st.Close() //nolint:errcheck
		_, ok := st.(*SQLiteStore)
		assert.True(t, ok)

		run, err := st.CreateRun(ctx, "/data", "")
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
	})

	t.Run("none", func(t *testing.T) {
		st, err := Open(ctx, config.StoreConfig{Driver: "none"})
		require.NoError(t, err)
		assert.IsType(t, Nop{}, st)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Open(ctx, config.StoreConfig{Driver: "mongo"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown driver")
	})
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var s Store = Nop{}

	run, err := s.CreateRun(ctx, "/data", model.FormatPNE)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.FormatPNE, run.Format)

	phase, err := s.CreatePhase(ctx, run.ID, "load")
	require.NoError(t, err)
	assert.Equal(t, run.ID, phase.RunID)

	assert.NoError(t, s.CompletePhase(ctx, phase.ID, &model.PhaseResult{}))
	assert.NoError(t, s.UpdateRunResult(ctx, run.ID, &model.RunResult{}))
	assert.NoError(t, s.FailRun(ctx, run.ID, nil))

	_, err = s.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}
