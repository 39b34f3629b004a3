package export

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cycler-cli/internal/db"
	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

const colLoadID = "load_id"

// Postgres appends the measurement table and the capacity log to table and
// table_capacity over COPY, creating them when missing. Every row carries the
// load id so repeated loads share one table.
func Postgres(ctx context.Context, sd *model.StandardizedData, dsn, table string) ([]string, error) {
	if dsn == "" {
		return nil, eris.New("export: postgres dsn is required")
	}
	pool, err := db.Connect(ctx, dsn, 0, 0)
	if err != nil {
		return nil, err
	}
	defer pool.Close()
	return CopyToPostgres(ctx, pool, sd, table)
}

// CopyToPostgres writes sd through pool and returns the tables written.
func CopyToPostgres(ctx context.Context, pool db.Pool, sd *model.StandardizedData, table string) ([]string, error) {
	if table == "" {
		table = defaultTable
	}
	if err := copyFrame(ctx, pool, table, sd.Metadata.LoadID, sd.Data); err != nil {
		return nil, err
	}
	tables := []string{table}
	if hasRows(sd.Capacity) {
		capTable := table + "_capacity"
		if err := copyFrame(ctx, pool, capTable, sd.Metadata.LoadID, sd.Capacity); err != nil {
			return nil, err
		}
		tables = append(tables, capTable)
	}
	return tables, nil
}

func copyFrame(ctx context.Context, pool db.Pool, table, loadID string, f *frame.Frame) error {
	cols := f.Columns()
	defs := make([]db.Column, 0, len(cols)+1)
	names := make([]string, 0, len(cols)+1)
	defs = append(defs, db.Column{Name: colLoadID, Type: "TEXT NOT NULL"})
	names = append(names, colLoadID)
	for _, c := range cols {
		defs = append(defs, db.Column{Name: c.Name, Type: postgresType(c.Kind)})
		names = append(names, c.Name)
	}
	if err := db.EnsureTable(ctx, pool, table, defs); err != nil {
		return err
	}

	rows := make([][]any, f.Len())
	for i := range rows {
		row := make([]any, 0, len(names))
		row = append(row, loadID)
		for _, c := range cols {
			if c.IsNull(i) {
				row = append(row, nil)
				continue
			}
			row = append(row, c.Value(i))
		}
		rows[i] = row
	}
	_, err := db.CopyFrom(ctx, pool, table, names, rows)
	return err
}

func postgresType(k frame.Kind) string {
	switch k {
	case frame.Float:
		return "DOUBLE PRECISION"
	case frame.Time:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}
