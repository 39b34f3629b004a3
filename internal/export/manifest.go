package export

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/cycler-cli/internal/model"
)

// Manifest describes one export.
type Manifest struct {
	ID              string             `yaml:"id"`
	LoadID          string             `yaml:"load_id"`
	Root            string             `yaml:"root"`
	Format          model.Format       `yaml:"format"`
	ExportFormat    string             `yaml:"export_format"`
	Files           []string           `yaml:"files"`
	Records         int                `yaml:"records"`
	CapacityRecords int                `yaml:"capacity_records"`
	Channels        []string           `yaml:"channels"`
	FailedFiles     int                `yaml:"failed_files"`
	CycleDefaulted  bool               `yaml:"cycle_defaulted,omitempty"`
	DateRange       *model.DateRange   `yaml:"date_range,omitempty"`
	Validation      *ValidationSummary `yaml:"validation,omitempty"`
	CreatedAt       time.Time          `yaml:"created_at"`
}

// ValidationSummary is the validation outcome recorded in a manifest.
type ValidationSummary struct {
	IsValid      bool     `yaml:"is_valid"`
	QualityScore float64  `yaml:"quality_score"`
	Issues       []string `yaml:"issues,omitempty"`
	Warnings     []string `yaml:"warnings,omitempty"`
}

// NewManifest builds the manifest for an export of sd. v may be nil.
func NewManifest(sd *model.StandardizedData, exportFormat string, files []string, v *model.ValidationResult) *Manifest {
	m := &Manifest{
		ID:              uuid.New().String(),
		LoadID:          sd.Metadata.LoadID,
		Root:            sd.Metadata.Root,
		Format:          sd.Format,
		ExportFormat:    exportFormat,
		Files:           files,
		Records:         sd.Len(),
		CapacityRecords: sd.Metadata.CapacityRecords,
		Channels:        sd.Metadata.Channels,
		FailedFiles:     sd.Metadata.FailedFiles,
		CycleDefaulted:  sd.Metadata.CycleDefaulted,
		DateRange:       sd.Metadata.DateRange,
		CreatedAt:       time.Now().UTC(),
	}
	if v != nil {
		m.Validation = &ValidationSummary{
			IsValid:      v.IsValid,
			QualityScore: v.QualityScore,
			Issues:       v.Issues,
			Warnings:     v.Warnings,
		}
	}
	return m
}

// ManifestPath returns the manifest location for an export path:
// out/run.parquet gives out/run.manifest.yaml.
func ManifestPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".manifest.yaml"
}

// Save writes the manifest as YAML.
func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "export: marshal manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write manifest %s", path)
	}
	return nil
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "export: parse manifest %s", path)
	}
	return &m, nil
}
