package model

import (
	"time"

	"github.com/sells-group/cycler-cli/internal/frame"
)

// Canonical column names shared by every format after normalization.
const (
	ColDatetime    = "Datetime"
	ColVoltage     = "Voltage_V"
	ColCurrent     = "Current_A"
	ColTemperature = "Temperature_C"
	ColCycle       = "Cycle"
	ColChannel     = "Channel"
	ColSourceFile  = "Source_file"
)

// RequiredColumns must be present in a fully populated standardized table.
var RequiredColumns = []string{ColDatetime, ColVoltage, ColCurrent, ColCycle}

// DateRange is the earliest and latest timestamp of a table.
type DateRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Metadata summarizes one load invocation.
type Metadata struct {
	LoadID          string             `json:"load_id" yaml:"load_id"`
	Root            string             `json:"root" yaml:"root"`
	Format          Format             `json:"format" yaml:"format"`
	Variants        map[string]Variant `json:"variants" yaml:"variants"`
	RecordCount     int                `json:"record_count" yaml:"record_count"`
	Channels        []string           `json:"channels" yaml:"channels"`
	DateRange       *DateRange         `json:"date_range,omitempty" yaml:"date_range,omitempty"`
	HasCapacityData bool               `json:"has_capacity_data" yaml:"has_capacity_data"`
	CapacityRecords int                `json:"capacity_records" yaml:"capacity_records"`
	TotalFiles      int                `json:"total_files" yaml:"total_files"`
	FailedFiles     int                `json:"failed_files" yaml:"failed_files"`
	MissingColumns  []string           `json:"missing_columns,omitempty" yaml:"missing_columns,omitempty"`
	CycleDefaulted  bool               `json:"cycle_defaulted" yaml:"cycle_defaulted"`
	LoadedAt        time.Time          `json:"loaded_at" yaml:"loaded_at"`
}

// ChannelRaw keeps per-channel parse details for traceability.
type ChannelRaw struct {
	Path        string                  `json:"path"`
	Variant     Variant                 `json:"variant"`
	HeaderLine  int                     `json:"header_line"`
	Preamble    string                  `json:"preamble,omitempty"`
	Files       []string                `json:"files"`
	FailedFiles []string                `json:"failed_files,omitempty"`
	SkippedRows int                     `json:"skipped_rows"`
	Info        map[string]string       `json:"info,omitempty"`
	Aux         map[string]*frame.Frame `json:"-"`
}

// StandardizedData is the canonical output of a load. It is shared read-only
// after construction; derive new frames instead of mutating Data or Capacity.
type StandardizedData struct {
	Data     *frame.Frame
	Capacity *frame.Frame
	Format   Format
	Metadata Metadata
	Raw      map[string]*ChannelRaw
}

// Len returns the number of canonical rows.
func (d *StandardizedData) Len() int {
	if d == nil || d.Data == nil {
		return 0
	}
	return d.Data.Len()
}

// HasColumn reports whether the canonical table holds a column.
func (d *StandardizedData) HasColumn(name string) bool {
	return d != nil && d.Data != nil && d.Data.Has(name)
}
