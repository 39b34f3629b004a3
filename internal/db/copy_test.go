package db

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "measurements", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"measurements"}, []string{"Voltage", "Current"}).WillReturnResult(3)

	rows := [][]any{{3.7, 1.0}, {3.8, 1.0}, {3.9, 0.0}}
	n, err := CopyFrom(context.Background(), mock, "measurements", []string{"Voltage", "Current"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"cycler", "measurements"}, []string{"Voltage"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "cycler.measurements", []string{"Voltage"}, [][]any{{3.7}, {3.8}})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"measurements"}, []string{"a"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "measurements", []string{"a"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO measurements")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTableSQL(t *testing.T) {
	tests := []struct {
		name  string
		table string
		cols  []Column
		want  string
	}{
		{
			name:  "plain",
			table: "measurements",
			cols:  []Column{{"Voltage", "DOUBLE PRECISION"}, {"Channel", "TEXT"}},
			want:  `CREATE TABLE IF NOT EXISTS "measurements" ("Voltage" DOUBLE PRECISION, "Channel" TEXT)`,
		},
		{
			name:  "schema",
			table: "cycler.measurements",
			cols:  []Column{{"Voltage", "DOUBLE PRECISION"}},
			want:  `CREATE TABLE IF NOT EXISTS "cycler"."measurements" ("Voltage" DOUBLE PRECISION)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CreateTableSQL(tt.table, tt.cols))
		})
	}
}

func TestEnsureTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "measurements"`)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	err = EnsureTable(context.Background(), mock, "measurements", []Column{{"Voltage", "DOUBLE PRECISION"}})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTable_NoColumns(t *testing.T) {
	err := EnsureTable(context.Background(), nil, "measurements", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns")
}
