package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStudyIDs(t *testing.T) {
	ids, err := parseStudyIDs("123, 456,789")
	require.NoError(t, err)
	assert.Equal(t, []int64{123, 456, 789}, ids)

	ids, err = parseStudyIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = parseStudyIDs("123,abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid study id "abc"`)
}

func TestCatalogStudyIDsExcludesQuery(t *testing.T) {
	require.NoError(t, catalogCmd.Flags().Set("study-ids", "123"))
	require.NoError(t, catalogCmd.Flags().Set("query", "gran encuesta"))
	defer func() {
		_ = catalogCmd.Flags().Set("study-ids", "")
		_ = catalogCmd.Flags().Set("query", "")
	}()

	err := runCatalog(catalogCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestCatalogStudyIDsSkipSearch(t *testing.T) {
	logger = zerolog.Nop()

	searched := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/api/catalog/search") {
			searched = true
			http.Error(w, "not expected", http.StatusInternalServerError)
			return
		}
		assert.Equal(t, "/metadata/export/314/json", r.URL.Path)
		fmt.Fprint(w, `{"study_desc": {"title_statement": {"idno": "DANE-314", "title": "Encuesta de Hogares"}}}`)
	}))
	defer server.Close()

	outDir := t.TempDir()
	require.NoError(t, catalogCmd.Flags().Set("base-url", server.URL))
	require.NoError(t, catalogCmd.Flags().Set("study-ids", "314"))
	require.NoError(t, catalogCmd.Flags().Set("out-dir", outDir))
	defer func() {
		_ = catalogCmd.Flags().Set("study-ids", "")
		_ = catalogCmd.Flags().Set("out-dir", "")
	}()
	catalogCmd.SetContext(context.Background())

	require.NoError(t, runCatalog(catalogCmd, nil))
	assert.False(t, searched, "explicit ids should not trigger a search")

	data, err := os.ReadFile(filepath.Join(outDir, "studies.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Encuesta de Hogares")
}
