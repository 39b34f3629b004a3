package model

import (
	"fmt"
	"time"
)

// ValidationResult is the outcome of a data-quality check run.
type ValidationResult struct {
	IsValid         bool               `json:"is_valid" yaml:"is_valid"`
	QualityScore    float64            `json:"quality_score" yaml:"quality_score"`
	Issues          []string           `json:"issues" yaml:"issues"`
	Warnings        []string           `json:"warnings" yaml:"warnings"`
	Recommendations []string           `json:"recommendations" yaml:"recommendations"`
	Metrics         map[string]float64 `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Summary renders a one-line status.
func (r *ValidationResult) Summary() string {
	status := "INVALID"
	if r.IsValid {
		status = "VALID"
	}
	return fmt.Sprintf("Status: %s, Quality Score: %.1f%%, Issues: %d, Warnings: %d",
		status, r.QualityScore, len(r.Issues), len(r.Warnings))
}

// Analysis kinds stored by the analyzer.
const (
	AnalysisBasicStatistics = "basic_statistics"
	AnalysisElectrochemical = "electrochemical_behavior"
	AnalysisAnomalies       = "anomaly_detection"
	AnalysisPerformance     = "performance_metrics"
	AnalysisCapacityFade    = "capacity_fade"
)

// AnalysisResult holds one analysis kind's output. Results carries the typed
// result struct of the analysis that produced it.
type AnalysisResult struct {
	AnalysisType string         `json:"analysis_type" yaml:"analysis_type"`
	Results      any            `json:"results" yaml:"results"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp" yaml:"timestamp"`
}
