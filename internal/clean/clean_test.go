// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package clean

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidrpo/macrofetch/pkg/types"
)

func sampleTable() *types.Table {
	return types.NewTable(
		[]string{"recurso", "fecha", "valor", "vacia"},
		[]types.Row{
			{"recurso": " Gas ", "fecha": time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC), "valor": 1.0, "vacia": nil},
			{"recurso": "Carbón", "fecha": time.Date(2025, 1, 10, 23, 59, 59, 0, time.UTC), "valor": 2.0, "vacia": nil},
			{"recurso": "Gas", "fecha": time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC), "valor": 3.0, "vacia": nil},
		},
	)
}

func TestApply_EqualityFilterTrimsBothSides(t *testing.T) {
	out, err := Apply(sampleTable(), Options{
		Equality: map[string][]string{"recurso": {"Gas "}},
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, out.NumRows())
}

func TestApply_UnknownFilterColumnSkipped(t *testing.T) {
	out, err := Apply(sampleTable(), Options{
		Equality: map[string][]string{"no_such": {"x"}},
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, out.NumRows())
}

func TestApply_DateRangeEndOfDayInclusive(t *testing.T) {
	// Start and end both 2025-01-10: rows anywhere within that calendar
	// day stay, midnight of the 11th is out.
	out, err := Apply(sampleTable(), Options{
		Date: DateRange{Column: "fecha", Start: "2025-01-10", End: "2025-01-10"},
	}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 2, out.NumRows())
	for _, row := range out.Rows {
		ts := row["fecha"].(time.Time)
		assert.Equal(t, 10, ts.Day())
	}
}

func TestApply_DateRangeParsesStringCells(t *testing.T) {
	tbl := types.NewTable([]string{"fecha"}, []types.Row{
		{"fecha": "2025-01-09"},
		{"fecha": "2025-01-10T12:00:00"},
		{"fecha": "not a date"},
	})
	out, err := Apply(tbl, Options{
		Date: DateRange{Column: "fecha", Start: "2025-01-10"},
	}, zerolog.Nop())
	require.NoError(t, err)
	// The unparsable cell is excluded, not an error.
	assert.Equal(t, 1, out.NumRows())
}

func TestApply_BadDateBoundErrors(t *testing.T) {
	_, err := Apply(sampleTable(), Options{
		Date: DateRange{Column: "fecha", Start: "ayer"},
	}, zerolog.Nop())
	assert.Error(t, err)
}

func TestApply_DropAllNullColumns(t *testing.T) {
	out, err := Apply(sampleTable(), Options{DropAllNullColumns: true}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"recurso", "fecha", "valor"}, out.Columns)
}

func TestApply_DedupKeepsFirstOccurrence(t *testing.T) {
	tbl := types.NewTable([]string{"a", "b"}, []types.Row{
		{"a": "x", "b": int64(1)},
		{"a": "y", "b": int64(2)},
		{"a": "x", "b": int64(1)},
		{"a": "x", "b": nil},
	})
	out, err := Apply(tbl, Options{DropDuplicates: true}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 3, out.NumRows())
	assert.Equal(t, "x", out.Rows[0]["a"])
	assert.Equal(t, "y", out.Rows[1]["a"])
}

func TestApply_DedupDistinguishesNullFromEmpty(t *testing.T) {
	tbl := types.NewTable([]string{"a"}, []types.Row{
		{"a": nil},
		{"a": ""},
	})
	out, err := Apply(tbl, Options{DropDuplicates: true}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, out.NumRows())
}

func TestApply_SubsetKeepsRequestedOrderAndDropsMissing(t *testing.T) {
	out, err := Apply(sampleTable(), Options{
		Subset: []string{"valor", "recurso", "inexistente"},
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"valor", "recurso"}, out.Columns)
}

func TestApply_SubsetCanonicalizesWhenSnakeCased(t *testing.T) {
	tbl := types.NewTable([]string{"codigo_recurso"}, []types.Row{{"codigo_recurso": "G"}})
	out, err := Apply(tbl, Options{
		Subset:    []string{"CodigoRecurso"},
		SnakeCase: true,
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"codigo_recurso"}, out.Columns)
}

func TestApply_InputNotMutated(t *testing.T) {
	tbl := sampleTable()
	_, err := Apply(tbl, Options{
		Equality:           map[string][]string{"recurso": {"Gas"}},
		DropAllNullColumns: true,
		DropDuplicates:     true,
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.NumRows())
	assert.Len(t, tbl.Columns, 4)
}
