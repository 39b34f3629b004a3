package model

import "time"

// RunStatus represents the current state of a processing run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusLoading    RunStatus = "loading"
	RunStatusValidating RunStatus = "validating"
	RunStatusAnalyzing  RunStatus = "analyzing"
	RunStatusExporting  RunStatus = "exporting"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is one load of a data root, from discovery to export.
type Run struct {
	ID        string     `json:"id"`
	Root      string     `json:"root"`
	Format    Format     `json:"format"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	LoadID       string        `json:"load_id"`
	Format       Format        `json:"format"`
	Records      int           `json:"records"`
	Channels     int           `json:"channels"`
	FailedFiles  int           `json:"failed_files"`
	QualityScore float64       `json:"quality_score"`
	IsValid      bool          `json:"is_valid"`
	Issues       int           `json:"issues"`
	Warnings     int           `json:"warnings"`
	ExportPath   string        `json:"export_path,omitempty"`
	Phases       []PhaseResult `json:"phases"`
	Error        string        `json:"error,omitempty"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a run phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a run phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
