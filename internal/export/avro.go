package export

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

const avroNamespace = "cycler"

// avroColumn binds a frame column to its sanitized avro field name.
type avroColumn struct {
	col  *frame.Column
	name string
}

// Avro writes one object-container record per channel, each holding that
// channel's rows in file order. Nulls are avro nulls; times are epoch
// microseconds in UTC.
func Avro(sd *model.StandardizedData, path string) ([]string, error) {
	cols := avroColumns(sd.Data)
	schema, err := avroSchema(cols)
	if err != nil {
		return nil, err
	}

	out, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: create %s", path)
	}
	defer out.Close() //nolint:errcheck

	enc, err := ocf.NewEncoder(schema.String(), out, ocf.WithCodec(ocf.Deflate))
	if err != nil {
		return nil, eris.Wrap(err, "export: avro encoder")
	}
	for _, g := range channelGroups(sd.Data) {
		rows := make([]map[string]any, len(g.rows))
		for k, i := range g.rows {
			row := make(map[string]any, len(cols))
			for _, c := range cols {
				row[c.name] = avroValue(c.col, i)
			}
			rows[k] = row
		}
		rec := map[string]any{
			"channel": g.name,
			"format":  string(sd.Format),
			"load_id": sd.Metadata.LoadID,
			"rows":    rows,
		}
		if err := enc.Encode(rec); err != nil {
			return nil, eris.Wrapf(err, "export: avro encode channel %q", g.name)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, eris.Wrap(err, "export: avro close")
	}
	return []string{path}, eris.Wrapf(out.Close(), "export: close %s", path)
}

// avroSchema builds the per-channel record schema for the given columns.
func avroSchema(cols []avroColumn) (avro.Schema, error) {
	fields := make([]map[string]any, len(cols))
	for i, c := range cols {
		fields[i] = map[string]any{
			"name":    c.name,
			"type":    []string{"null", avroPrimitive(c.col.Kind)},
			"default": nil,
		}
	}
	doc := map[string]any{
		"type":      "record",
		"name":      "Channel",
		"namespace": avroNamespace,
		"fields": []any{
			map[string]any{"name": "channel", "type": "string"},
			map[string]any{"name": "format", "type": "string"},
			map[string]any{"name": "load_id", "type": "string"},
			map[string]any{"name": "rows", "type": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "record", "name": "Row", "fields": fields},
			}},
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "export: marshal avro schema")
	}
	schema, err := avro.Parse(string(raw))
	if err != nil {
		return nil, eris.Wrap(err, "export: parse avro schema")
	}
	return schema, nil
}

func avroPrimitive(k frame.Kind) string {
	switch k {
	case frame.Float:
		return "double"
	case frame.Time:
		return "long"
	default:
		return "string"
	}
}

func avroValue(c *frame.Column, i int) any {
	if c.IsNull(i) {
		return nil
	}
	switch c.Kind {
	case frame.Time:
		return c.Times()[i].UTC().UnixMicro()
	default:
		return c.Value(i)
	}
}

func avroColumns(f *frame.Frame) []avroColumn {
	seen := make(map[string]int)
	out := make([]avroColumn, 0, f.Width())
	for _, c := range f.Columns() {
		name := AvroName(c.Name)
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name += "_" + strconv.Itoa(n+1)
		} else {
			seen[name] = 1
		}
		out = append(out, avroColumn{col: c, name: name})
	}
	return out
}

// AvroName maps a column name onto the avro name alphabet
// [A-Za-z_][A-Za-z0-9_]*.
func AvroName(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

type channelGroup struct {
	name string
	rows []int
}

// channelGroups splits rows by Channel in first-seen order. A frame without
// a Channel column is one unnamed group.
func channelGroups(f *frame.Frame) []channelGroup {
	chans := f.Strings(model.ColChannel)
	if chans == nil {
		rows := make([]int, f.Len())
		for i := range rows {
			rows[i] = i
		}
		return []channelGroup{{rows: rows}}
	}
	idx := make(map[string]int)
	var out []channelGroup
	for i, ch := range chans {
		j, ok := idx[ch]
		if !ok {
			j = len(out)
			idx[ch] = j
			out = append(out, channelGroup{name: ch})
		}
		out[j].rows = append(out[j].rows, i)
	}
	return out
}
