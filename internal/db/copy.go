package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Column is a column definition for EnsureTable.
type Column struct {
	Name string
	Type string
}

// CopyFrom bulk-inserts rows into a table using the PostgreSQL COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// EnsureTable creates table with the given columns when it does not exist.
// A dotted table name is treated as schema.table.
func EnsureTable(ctx context.Context, pool Pool, table string, cols []Column) error {
	if len(cols) == 0 {
		return eris.Errorf("db: no columns for table %s", table)
	}
	_, err := pool.Exec(ctx, CreateTableSQL(table, cols))
	if err != nil {
		return eris.Wrapf(err, "db: create table %s", table)
	}
	return nil
}

// CreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement with quoted
// identifiers.
func CreateTableSQL(table string, cols []Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + c.Type
	}
	return "CREATE TABLE IF NOT EXISTS " + identifier(table).Sanitize() + " (" + strings.Join(defs, ", ") + ")"
}

func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.SplitN(table, ".", 2))
}
