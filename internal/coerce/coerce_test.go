// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package coerce

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidrpo/macrofetch/pkg/types"
)

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"FechaPublicacion", "fecha_publicacion"},
		{"valorMaximo", "valor_maximo"},
		{"Codigo Recurso", "codigo_recurso"},
		{"a-b/c d", "a_b_c_d"},
		{"Ya__Snaked", "ya_snaked"},
		{"already_snake", "already_snake"},
		{"ABC", "abc"},
		{"Id", "id"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SnakeCase(tt.in); got != tt.want {
				t.Errorf("SnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestApply_DeclaredSchema(t *testing.T) {
	tbl := types.NewTable(
		[]string{"Fecha", "FechaHora", "Valor", "Recurso"},
		[]types.Row{
			{"Fecha": "2025-07-01", "FechaHora": "2025-07-01T13:45:00", "Valor": "12.5", "Recurso": "  Gas  "},
			{"Fecha": "not a date", "FechaHora": "garbage", "Valor": "x", "Recurso": "Carbón"},
		},
	)
	schema := types.ColumnSchema{
		{Name: "fecha", Type: types.TypeDate},
		{Name: "fechahora", Type: types.TypeDatetime},
		{Name: "valor", Type: types.TypeNumeric},
		{Name: "recurso", Type: types.TypeText},
	}

	out, err := Apply(tbl, schema, Options{StripText: true})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), out.Rows[0]["Fecha"])
	assert.Equal(t, time.Date(2025, 7, 1, 13, 45, 0, 0, time.UTC), out.Rows[0]["FechaHora"])
	assert.Equal(t, 12.5, out.Rows[0]["Valor"])
	assert.Equal(t, "Gas", out.Rows[0]["Recurso"])

	// Bad values recover as nulls, never as errors.
	assert.Nil(t, out.Rows[1]["Fecha"])
	assert.Nil(t, out.Rows[1]["FechaHora"])
	assert.Nil(t, out.Rows[1]["Valor"])

	// Input untouched.
	assert.Equal(t, "2025-07-01", tbl.Rows[0]["Fecha"])
}

func TestApply_CoercionNeverRaisesOnValues(t *testing.T) {
	weird := []any{"", "–", "NaN?", true, int64(7), 3.14, "0000-99-99", "[]"}
	for _, target := range []types.ColumnType{types.TypeDate, types.TypeDatetime, types.TypeNumeric, types.TypeText} {
		rows := make([]types.Row, len(weird))
		for i, w := range weird {
			rows[i] = types.Row{"c": w}
		}
		tbl := types.NewTable([]string{"c"}, rows)
		_, err := Apply(tbl, types.ColumnSchema{{Name: "c", Type: target}}, Options{})
		assert.NoError(t, err, "target %s", target)
	}
}

// inferenceTable builds a 20-value column where valid of them parse as
// dates, so the parse ratio is valid/20.
func inferenceTable(valid int) *types.Table {
	rows := make([]types.Row, 20)
	for i := 0; i < 20; i++ {
		if i < valid {
			rows[i] = types.Row{"c": fmt.Sprintf("2024-01-%02d", i+1)}
		} else {
			rows[i] = types.Row{"c": fmt.Sprintf("not-a-date-%d", i)}
		}
	}
	return types.NewTable([]string{"c"}, rows)
}

func TestApply_InferenceThresholdBoundary(t *testing.T) {
	// 19/20 = 95% parses: commit to datetime.
	out, err := Apply(inferenceTable(19), nil, Options{})
	require.NoError(t, err)
	_, isTime := out.Rows[0]["c"].(time.Time)
	assert.True(t, isTime, "95%% valid should commit to datetime")

	// 17/20 = 85% parses: stay text.
	out, err = Apply(inferenceTable(17), nil, Options{})
	require.NoError(t, err)
	_, isString := out.Rows[0]["c"].(string)
	assert.True(t, isString, "85%% valid should stay text")
}

func TestApply_InferenceIgnoresNulls(t *testing.T) {
	// 9 dates + 1 junk among many nulls: ratio over non-null values is 90%.
	rows := []types.Row{}
	for i := 0; i < 9; i++ {
		rows = append(rows, types.Row{"c": "2024-05-01"})
	}
	rows = append(rows, types.Row{"c": "junk"})
	for i := 0; i < 30; i++ {
		rows = append(rows, types.Row{"c": nil})
	}
	out, err := Apply(types.NewTable([]string{"c"}, rows), nil, Options{})
	require.NoError(t, err)
	_, isTime := out.Rows[0]["c"].(time.Time)
	assert.True(t, isTime)
}

func TestApply_AllNullColumnStaysNull(t *testing.T) {
	tbl := types.NewTable([]string{"c"}, []types.Row{{"c": nil}, {"c": nil}})
	out, err := Apply(tbl, nil, Options{})
	require.NoError(t, err)
	assert.Nil(t, out.Rows[0]["c"])
}

func TestApply_SnakeCaseRename(t *testing.T) {
	tbl := types.NewTable(
		[]string{"FechaPublicacion", "CodigoDuracion"},
		[]types.Row{{"FechaPublicacion": "x", "CodigoDuracion": "y"}},
	)
	out, err := Apply(tbl, nil, Options{SnakeCase: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"fecha_publicacion", "codigo_duracion"}, out.Columns)
	assert.Equal(t, "x", out.Rows[0]["fecha_publicacion"])
}

func TestApply_DuplicateCanonicalNamesError(t *testing.T) {
	tbl := types.NewTable(
		[]string{"Valor Total", "valor_total"},
		[]types.Row{{"Valor Total": "1", "valor_total": "2"}},
	)
	_, err := Apply(tbl, nil, Options{SnakeCase: true})
	assert.ErrorContains(t, err, "canonicalize")
}

func TestApply_DateNoFallbackFormat(t *testing.T) {
	// Declared date columns accept only the calendar-date layout.
	tbl := types.NewTable([]string{"d"}, []types.Row{{"d": "01/07/2025"}})
	out, err := Apply(tbl, types.ColumnSchema{{Name: "d", Type: types.TypeDate}}, Options{})
	require.NoError(t, err)
	assert.Nil(t, out.Rows[0]["d"])
}

func TestApply_DateKeepsCalendarDay(t *testing.T) {
	// Truncating to the day must follow the cell's own calendar, not the
	// absolute UTC timeline.
	bogota := time.FixedZone("America/Bogota", -5*60*60)
	tbl := types.NewTable([]string{"d"}, []types.Row{
		{"d": time.Date(2025, 3, 15, 22, 30, 0, 0, bogota)},
	})
	out, err := Apply(tbl, types.ColumnSchema{{Name: "d", Type: types.TypeDate}}, Options{})
	require.NoError(t, err)
	got, ok := out.Rows[0]["d"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, bogota), got)
}

func TestParseDatetime(t *testing.T) {
	cases := []string{
		"2025-07-01",
		"2025-07-01T08:30:00",
		"2025-07-01 08:30:00",
		"2025-07-01T08:30:00Z",
	}
	for _, c := range cases {
		_, ok := ParseDatetime(c)
		assert.True(t, ok, c)
	}
	_, ok := ParseDatetime("julio 1 de 2025")
	assert.False(t, ok)
}
