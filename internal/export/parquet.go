package export

import (
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// Parquet writes the measurement table to path and the capacity log, when
// present, to a _capacity sidecar. Float NaN and zero times are written as
// nulls; times are UTC microsecond timestamps.
func Parquet(sd *model.StandardizedData, path string) ([]string, error) {
	mem := memory.NewGoAllocator()
	if err := writeParquet(mem, sd.Data, path); err != nil {
		return nil, err
	}
	files := []string{path}
	if hasRows(sd.Capacity) {
		capPath := sidecarPath(path, "_capacity")
		if err := writeParquet(mem, sd.Capacity, capPath); err != nil {
			return nil, err
		}
		files = append(files, capPath)
	}
	return files, nil
}

// ArrowSchema maps frame columns to nullable arrow fields.
func ArrowSchema(f *frame.Frame) *arrow.Schema {
	fields := make([]arrow.Field, 0, f.Width())
	for _, c := range f.Columns() {
		fields = append(fields, arrow.Field{Name: c.Name, Type: arrowType(c.Kind), Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(k frame.Kind) arrow.DataType {
	switch k {
	case frame.Float:
		return arrow.PrimitiveTypes.Float64
	case frame.Time:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		return arrow.BinaryTypes.String
	}
}

func writeParquet(mem memory.Allocator, f *frame.Frame, path string) error {
	schema := ArrowSchema(f)
	arrays := make([]arrow.Array, 0, f.Width())
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()
	for i, c := range f.Columns() {
		arr, err := buildArray(mem, schema.Field(i), c)
		if err != nil {
			return err
		}
		arrays = append(arrays, arr)
	}

	record := array.NewRecord(schema, arrays, int64(f.Len()))
	defer record.Release()

	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	writer, err := pqarrow.NewFileWriter(schema, file, nil, pqarrow.DefaultWriterProps())
	if err != nil {
		file.Close() //nolint:errcheck
		return eris.Wrapf(err, "export: parquet writer %s", path)
	}
	if err := writer.Write(record); err != nil {
		writer.Close() //nolint:errcheck
		return eris.Wrapf(err, "export: parquet write %s", path)
	}
	return eris.Wrapf(writer.Close(), "export: parquet close %s", path)
}

func buildArray(mem memory.Allocator, field arrow.Field, c *frame.Column) (arrow.Array, error) {
	builder := array.NewBuilder(mem, field.Type)
	defer builder.Release()
	builder.Reserve(c.Len())

	switch b := builder.(type) {
	case *array.Float64Builder:
		for i, v := range c.Floats() {
			if c.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(v)
		}
	case *array.TimestampBuilder:
		for i, t := range c.Times() {
			if c.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(arrow.Timestamp(t.UTC().UnixMicro()))
		}
	case *array.StringBuilder:
		for i, s := range c.Strings() {
			if c.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(s)
		}
	default:
		return nil, eris.Errorf("export: unsupported arrow type %s for column %s", field.Type, c.Name)
	}
	return builder.NewArray(), nil
}
