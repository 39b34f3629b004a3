package export

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// CSV writes the measurement table to path and the capacity log, when
// present, to a _capacity sidecar. Nulls are written as empty fields.
func CSV(sd *model.StandardizedData, path string) ([]string, error) {
	if err := writeCSV(sd.Data, path); err != nil {
		return nil, err
	}
	files := []string{path}
	if hasRows(sd.Capacity) {
		capPath := sidecarPath(path, "_capacity")
		if err := writeCSV(sd.Capacity, capPath); err != nil {
			return nil, err
		}
		files = append(files, capPath)
	}
	return files, nil
}

func writeCSV(f *frame.Frame, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer out.Close() //nolint:errcheck

	w := csv.NewWriter(out)
	if err := w.Write(f.Names()); err != nil {
		return eris.Wrapf(err, "export: write header %s", path)
	}
	cols := f.Columns()
	rec := make([]string, len(cols))
	for i := 0; i < f.Len(); i++ {
		for j, c := range cols {
			rec[j] = c.Format(i)
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "export: write row %d of %s", i, path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "export: flush %s", path)
	}
	return eris.Wrapf(out.Close(), "export: close %s", path)
}
