package frame

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRows_PadsShortRecords(t *testing.T) {
	f := FromRows([]string{"a", "b", "c"}, [][]string{
		{"1", "2", "3"},
		{"4", "5"},
	})

	assert.Equal(t, 2, f.Len())
	assert.Equal(t, []string{"a", "b", "c"}, f.Names())
	assert.Equal(t, []string{"3", ""}, f.Strings("c"))
	assert.Equal(t, 1, f.Column("c").NullCount())
}

func TestSet_LengthMismatch(t *testing.T) {
	f := New()
	require.NoError(t, f.Set(NewFloatColumn("x", []float64{1, 2})))

	err := f.Set(NewFloatColumn("y", []float64{1}))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `column "y"`)
}

func TestSet_ReplacesExisting(t *testing.T) {
	f := New()
	require.NoError(t, f.Set(NewStringColumn("x", []string{"1", "2"})))
	require.NoError(t, f.Set(NewFloatColumn("x", []float64{3, 4})))

	assert.Equal(t, 1, f.Width())
	assert.Equal(t, []float64{3, 4}, f.Floats("x"))
}

func TestColumn_FloatsFromStrings(t *testing.T) {
	c := NewStringColumn("v", []string{"1.5", "+2", "bad", ""})
	got := c.Floats()

	assert.Equal(t, 1.5, got[0])
	assert.Equal(t, 2.0, got[1])
	assert.True(t, math.IsNaN(got[2]))
	assert.True(t, math.IsNaN(got[3]))
}

func TestDropAndRename(t *testing.T) {
	f := FromRows([]string{"a", "b", "c"}, [][]string{{"1", "2", "3"}})

	f.Drop("b", "missing")
	assert.Equal(t, []string{"a", "c"}, f.Names())

	f.Rename("a", "c")
	assert.Equal(t, []string{"c"}, f.Names())
	assert.Equal(t, []string{"1"}, f.Strings("c"))
}

func TestFilterAndTake(t *testing.T) {
	f, err := FromColumns(
		NewFloatColumn("x", []float64{1, 2, 3, 4}),
		NewStringColumn("s", []string{"a", "b", "c", "d"}),
	)
	require.NoError(t, err)

	even := f.Filter(func(i int) bool { return int(f.Floats("x")[i])%2 == 0 })
	assert.Equal(t, []float64{2, 4}, even.Floats("x"))
	assert.Equal(t, []string{"b", "d"}, even.Strings("s"))

	rev := f.Take([]int{3, 0})
	assert.Equal(t, []string{"d", "a"}, rev.Strings("s"))
	assert.Equal(t, 4, f.Len(), "source frame untouched")
}

func TestRowIsEmpty(t *testing.T) {
	f := FromRows([]string{"a", "b"}, [][]string{{"", ""}, {"", "x"}})

	assert.True(t, f.RowIsEmpty(0))
	assert.False(t, f.RowIsEmpty(1))
}

func TestConcat_UnionOfColumns(t *testing.T) {
	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	a, err := FromColumns(
		NewFloatColumn("x", []float64{1, 2}),
		NewTimeColumn("t", []time.Time{ts, ts}),
	)
	require.NoError(t, err)
	b, err := FromColumns(
		NewFloatColumn("x", []float64{3}),
		NewFloatColumn("y", []float64{9}),
	)
	require.NoError(t, err)

	out := Concat(a, nil, b)

	assert.Equal(t, 3, out.Len())
	assert.Equal(t, []string{"x", "t", "y"}, out.Names())
	assert.Equal(t, []float64{1, 2, 3}, out.Floats("x"))
	assert.Equal(t, Time, out.Column("t").Kind)
	assert.True(t, out.Column("t").IsNull(2))
	assert.True(t, math.IsNaN(out.Floats("y")[0]))
	assert.Equal(t, 9.0, out.Floats("y")[2])
}

func TestConcat_MixedKindsBecomeText(t *testing.T) {
	a, err := FromColumns(NewFloatColumn("x", []float64{1.5}))
	require.NoError(t, err)
	b := FromRows([]string{"x"}, [][]string{{"n/a"}})

	out := Concat(a, b)

	assert.Equal(t, String, out.Column("x").Kind)
	assert.Equal(t, []string{"1.5", "n/a"}, out.Strings("x"))
}

func TestColumn_FormatAndValue(t *testing.T) {
	ts := time.Date(2024, 1, 15, 12, 30, 5, 0, time.UTC)
	tc := NewTimeColumn("t", []time.Time{ts, {}})
	fc := NewFloatColumn("f", []float64{3.7, math.NaN()})

	assert.Equal(t, "2024-01-15 12:30:05", tc.Format(0))
	assert.Equal(t, "", tc.Format(1))
	assert.Nil(t, tc.Value(1))
	assert.Equal(t, "3.7", fc.Format(0))
	assert.Equal(t, 3.7, fc.Value(0))
	assert.Nil(t, fc.Value(1))
}
