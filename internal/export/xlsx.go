package export

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// Sheet names written by XLSX.
const (
	SheetData     = "data"
	SheetCapacity = "capacity"
	SheetMetadata = "metadata"
)

// xlsxMaxRows is the worksheet row limit, header included.
const xlsxMaxRows = 1048576

// XLSX writes a workbook with data, capacity (when present) and metadata
// sheets. Numbers are numeric cells; nulls are empty cells.
func XLSX(sd *model.StandardizedData, path string) ([]string, error) {
	f := xlsx.NewFile()
	if err := addFrameSheet(f, SheetData, sd.Data); err != nil {
		return nil, err
	}
	if hasRows(sd.Capacity) {
		if err := addFrameSheet(f, SheetCapacity, sd.Capacity); err != nil {
			return nil, err
		}
	}

	sheet, err := f.AddSheet(SheetMetadata)
	if err != nil {
		return nil, eris.Wrap(err, "export: add metadata sheet")
	}
	for _, kv := range metadataPairs(sd) {
		row := sheet.AddRow()
		row.AddCell().SetString(kv[0])
		row.AddCell().SetString(kv[1])
	}

	if err := f.Save(path); err != nil {
		return nil, eris.Wrapf(err, "export: save %s", path)
	}
	return []string{path}, nil
}

func addFrameSheet(f *xlsx.File, name string, fr *frame.Frame) error {
	if fr.Len()+1 > xlsxMaxRows {
		return eris.Errorf("export: %d rows exceed the worksheet limit for sheet %s", fr.Len(), name)
	}
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}
	header := sheet.AddRow()
	for _, n := range fr.Names() {
		header.AddCell().SetString(n)
	}
	cols := fr.Columns()
	for i := 0; i < fr.Len(); i++ {
		row := sheet.AddRow()
		for _, c := range cols {
			cell := row.AddCell()
			if c.IsNull(i) {
				continue
			}
			if c.Kind == frame.Float {
				cell.SetFloat(c.Floats()[i])
				continue
			}
			cell.SetString(c.Format(i))
		}
	}
	return nil
}

// metadataPairs flattens load metadata to key/value rows.
func metadataPairs(sd *model.StandardizedData) [][2]string {
	md := sd.Metadata
	pairs := [][2]string{
		{"load_id", md.LoadID},
		{"root", md.Root},
		{"format", string(sd.Format)},
		{"record_count", strconv.Itoa(sd.Len())},
		{"channels", strings.Join(md.Channels, ",")},
		{"total_files", strconv.Itoa(md.TotalFiles)},
		{"failed_files", strconv.Itoa(md.FailedFiles)},
		{"has_capacity_data", strconv.FormatBool(md.HasCapacityData)},
		{"capacity_records", strconv.Itoa(md.CapacityRecords)},
		{"cycle_defaulted", strconv.FormatBool(md.CycleDefaulted)},
	}
	if md.DateRange != nil {
		pairs = append(pairs,
			[2]string{"date_start", md.DateRange.Start.Format(frame.TimeLayout)},
			[2]string{"date_end", md.DateRange.End.Format(frame.TimeLayout)},
		)
	}
	if len(md.MissingColumns) > 0 {
		pairs = append(pairs, [2]string{"missing_columns", strings.Join(md.MissingColumns, ",")})
	}
	if !md.LoadedAt.IsZero() {
		pairs = append(pairs, [2]string{"loaded_at", md.LoadedAt.Format(frame.TimeLayout)})
	}
	return pairs
}
