// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidrpo/macrofetch/pkg/types"
)

func newDatasetClient(baseURL string) *DatasetClient {
	return &DatasetClient{
		Client: &http.Client{Timeout: 5 * time.Second},
		Log:    zerolog.Nop(),
		Config: types.DatasetConfig{
			Retry:   types.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond},
			BaseURL: baseURL,
		},
	}
}

func TestFetchDatasetEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ec6945", r.URL.Query().Get("datasetId"))
		assert.Equal(t, "2025-01-01", r.URL.Query().Get("startDate"))
		assert.Equal(t, "2025-01-31", r.URL.Query().Get("endDate"))
		fmt.Fprint(w, `{
			"success": true,
			"result": {
				"name": "Precio de Bolsa",
				"lastUpdate": "2025-02-01",
				"records": [
					{"Fecha": "2025-01-01", "Valor": 312.5},
					{"Fecha": "2025-01-02", "Valor": 298.1}
				],
				"columns": [
					{"nameColumn": "Fecha", "dataType": "Fecha", "title": "Fecha de operacion"},
					{"nameColumn": "Valor", "dataType": "Numerico"}
				]
			}
		}`)
	}))
	defer server.Close()

	client := newDatasetClient(server.URL)
	res, err := client.FetchDataset(context.Background(), "ec6945", "2025-01-01", "2025-01-31", nil)
	require.NoError(t, err)

	assert.Equal(t, "Precio de Bolsa", res.Name)
	assert.Equal(t, []string{"Fecha", "Valor"}, res.Table.Columns)
	require.Equal(t, 2, res.Table.NumRows())
	assert.Equal(t, "2025-01-01", res.Table.Rows[0]["Fecha"])

	// Declared types arrive canonicalized; unknown declarations stay text.
	fecha, ok := res.Schema.Lookup("fecha")
	require.True(t, ok)
	assert.Equal(t, types.TypeDate, fecha.Type)
	assert.Equal(t, "Fecha de operacion", fecha.Label)
	valor, ok := res.Schema.Lookup("valor")
	require.True(t, ok)
	assert.Equal(t, types.TypeText, valor.Type)

	// Everything in result except the records and column declarations is
	// reported.
	assert.Equal(t, []string{"name", "lastUpdate"}, res.MetadataKeys)
}

func TestFetchDatasetDatetimeDeclaration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"success": true,
			"result": {
				"records": [{"FechaHora": "2025-01-01 13:00:00"}],
				"columns": [{"nameColumn": "FechaHora", "dataType": "fecha hora"}]
			}
		}`)
	}))
	defer server.Close()

	client := newDatasetClient(server.URL)
	res, err := client.FetchDataset(context.Background(), "x1", "", "", nil)
	require.NoError(t, err)
	spec, ok := res.Schema.Lookup("fecha_hora")
	require.True(t, ok)
	assert.Equal(t, types.TypeDatetime, spec.Type)
}

func TestFetchDatasetServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": false, "message": "dataset not found"}`)
	}))
	defer server.Close()

	client := newDatasetClient(server.URL)
	_, err := client.FetchDataset(context.Background(), "nope", "", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset not found")
}

func TestFetchDatasetMissingResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true}`)
	}))
	defer server.Close()

	client := newDatasetClient(server.URL)
	_, err := client.FetchDataset(context.Background(), "x1", "", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no result block")
}

func TestFetchDatasetBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"a": 1}, {"a": 2}]`)
	}))
	defer server.Close()

	client := newDatasetClient(server.URL)
	res, err := client.FetchDataset(context.Background(), "x1", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "x1", res.Name)
	assert.Equal(t, 2, res.Table.NumRows())
	assert.Empty(t, res.Schema)
}

func TestFetchDatasetServerFilterParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CodigoVariable", r.URL.Query().Get("columnDestinyName"))
		assert.Equal(t, "PB_Nal,PB_Int", r.URL.Query().Get("values"))
		fmt.Fprint(w, `{"success": true, "result": {"records": []}}`)
	}))
	defer server.Close()

	client := newDatasetClient(server.URL)
	res, err := client.FetchDataset(context.Background(), "x1", "", "",
		&ServerFilter{Column: "CodigoVariable", Values: []string{"PB_Nal", "PB_Int"}})
	require.NoError(t, err)
	assert.True(t, res.Table.Empty())
}
