package export

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/cycler-cli/internal/frame"
	"github.com/sells-group/cycler-cli/internal/model"
)

// SQLite writes table (measurements by default), capacity and metadata
// tables into a fresh database file at path. Times are stored as text.
func SQLite(ctx context.Context, sd *model.StandardizedData, path, table string) ([]string, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrapf(err, "export: remove %s", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "export: sqlite open")
	}
	defer db.Close() //nolint:errcheck

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "export: sqlite begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertFrame(ctx, tx, table, sd.Data); err != nil {
		return nil, err
	}
	if hasRows(sd.Capacity) {
		if err := insertFrame(ctx, tx, table+"_capacity", sd.Capacity); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return nil, eris.Wrap(err, "export: sqlite create metadata")
	}
	for _, kv := range metadataPairs(sd) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return nil, eris.Wrapf(err, "export: sqlite insert metadata %s", kv[0])
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "export: sqlite commit")
	}
	return []string{path}, eris.Wrap(db.Close(), "export: sqlite close")
}

func insertFrame(ctx context.Context, tx *sql.Tx, table string, f *frame.Frame) error {
	cols := f.Columns()
	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
		defs[i] = names[i] + " " + sqliteType(c.Kind)
		marks[i] = "?"
	}
	if _, err := tx.ExecContext(ctx, "CREATE TABLE "+quoteIdent(table)+" ("+strings.Join(defs, ", ")+")"); err != nil {
		return eris.Wrapf(err, "export: sqlite create %s", table)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+quoteIdent(table)+" ("+strings.Join(names, ", ")+") VALUES ("+strings.Join(marks, ", ")+")")
	if err != nil {
		return eris.Wrapf(err, "export: sqlite prepare %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	args := make([]any, len(cols))
	for i := 0; i < f.Len(); i++ {
		for j, c := range cols {
			args[j] = sqlValue(c, i)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return eris.Wrapf(err, "export: sqlite insert %s row %d", table, i)
		}
	}
	return nil
}

func sqliteType(k frame.Kind) string {
	if k == frame.Float {
		return "REAL"
	}
	return "TEXT"
}

// sqlValue returns the i-th value for a SQL driver: nil for nulls, times as
// formatted text.
func sqlValue(c *frame.Column, i int) any {
	if c.IsNull(i) {
		return nil
	}
	if c.Kind == frame.Time {
		return c.Format(i)
	}
	return c.Value(i)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
