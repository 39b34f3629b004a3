package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/cycler-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Root:      "/data/toyo/cell-01",
			Format:    model.FormatToyo,
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{Records: 1200, QualityScore: 97.25},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Root:      "/data/pne/" + "a-very-long-directory-name-that-needs-trimming",
			Format:    model.FormatPNE,
			Status:    model.RunStatusLoading,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ROOT")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "/data/toyo/cell-01")
	assert.Contains(t, output, "TOYO")
	assert.Contains(t, output, "1200")
	assert.Contains(t, output, "97.2")
	assert.Contains(t, output, "loading")
	assert.Contains(t, output, "...")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
}

func TestComputeRunStats(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	validatedResult := func(format model.Format, records int, score float64) *model.RunResult {
		return &model.RunResult{
			Format:       format,
			Records:      records,
			QualityScore: score,
			Phases: []model.PhaseResult{
				{Name: phaseLoad, Status: model.PhaseStatusComplete},
				{Name: phaseValidate, Status: model.PhaseStatusComplete},
			},
		}
	}
	runs := []model.Run{
		{Status: model.RunStatusComplete, Result: validatedResult(model.FormatToyo, 100, 90), CreatedAt: now, UpdatedAt: now.Add(10 * time.Second)},
		{Status: model.RunStatusComplete, Result: validatedResult(model.FormatPNE, 50, 80), CreatedAt: now, UpdatedAt: now.Add(30 * time.Second)},
		{Status: model.RunStatusComplete, Result: &model.RunResult{Format: model.FormatToyo, Records: 10}, CreatedAt: now, UpdatedAt: now.Add(20 * time.Second)},
		{Status: model.RunStatusFailed, Result: &model.RunResult{Error: "boom"}},
		{Status: model.RunStatusAnalyzing},
	}

	s := computeRunStats(runs)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Complete)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Other)
	assert.Equal(t, 160, s.Records)
	assert.Equal(t, 2, s.ByFormatCnt[model.FormatToyo])
	assert.InDelta(t, 85.0, s.AvgQuality, 1e-9)
	assert.InDelta(t, 20.0, s.AvgDurSecs, 1e-9)

	var buf bytes.Buffer
	formatRunStats(&buf, s)
	out := buf.String()
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "TOYO:")
	assert.Contains(t, out, "Avg quality:")
	assert.Contains(t, out, "85.0%")
}

func TestRunsSince(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{ID: "old", CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "new", CreatedAt: now.Add(-1 * time.Hour)},
	}
	got := runsSince(runs, now.Add(-24*time.Hour))
	assert.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
