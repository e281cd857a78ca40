// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidrpo/macrofetch/pkg/types"
)

func sampleTable() *types.Table {
	return types.NewTable(
		[]string{"date", "series", "value", "count"},
		[]types.Row{
			{"date": time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "series": "TRM", "value": 3900.5, "count": int64(3)},
			{"date": time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), "series": "TRM", "value": nil, "count": int64(4)},
		},
	)
}

func TestCSVWrite(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out", "long.csv")
	require.NoError(t, CSV{}.Write(context.Background(), sampleTable(), dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t,
		"date,series,value,count\n"+
			"2024-01-15,TRM,3900.5,3\n"+
			"2024-01-16,TRM,,4\n",
		string(data))
}

func TestSQLiteWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macro.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(context.Background(), sampleTable(), "long"))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM "long"`).Scan(&n))
	assert.Equal(t, 2, n)

	var date string
	var value *float64
	var count int64
	require.NoError(t, s.db.QueryRow(
		`SELECT date, value, count FROM "long" WHERE date = '2024-01-16'`,
	).Scan(&date, &value, &count))
	assert.Equal(t, "2024-01-16", date)
	assert.Nil(t, value)
	assert.Equal(t, int64(4), count)
}

func TestSQLiteWriteReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macro.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(context.Background(), sampleTable(), "long"))
	require.NoError(t, s.Write(context.Background(), sampleTable(), "long"))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM "long"`).Scan(&n))
	assert.Equal(t, 2, n)
}
