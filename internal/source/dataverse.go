// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/davidrpo/macrofetch/internal/cache"
	"github.com/davidrpo/macrofetch/internal/httputil"
	"github.com/davidrpo/macrofetch/internal/labels"
	"github.com/davidrpo/macrofetch/internal/view"
	"github.com/davidrpo/macrofetch/pkg/types"
)

// FileMeta describes one file of a dataverse dataset version.
type FileMeta struct {
	ID          int64
	Label       string
	ContentType string
	Size        int64
	Checksum    string // md5 when the server provides one
}

// DataverseClient reads published datasets from a Dataverse repository.
type DataverseClient struct {
	Client *http.Client
	Log    zerolog.Logger
	Config types.DataverseConfig
}

func (c *DataverseClient) retryOpts() httputil.Options {
	return httputil.Options{
		MaxAttempts:    c.Config.Retry.MaxAttempts,
		InitialBackoff: c.Config.Retry.InitialBackoff,
	}
}

func (c *DataverseClient) headers() http.Header {
	h := http.Header{}
	if c.Config.UserAgent != "" {
		h.Set("User-Agent", c.Config.UserAgent)
	}
	if c.Config.APIToken != "" {
		h.Set("X-Dataverse-key", c.Config.APIToken)
	}
	return h
}

// ListFiles returns the files of the latest published version of the
// dataset identified by persistentID (a "doi:..." string).
func (c *DataverseClient) ListFiles(ctx context.Context, persistentID string) ([]FileMeta, error) {
	listURL := strings.TrimRight(c.Config.BaseURL, "/") + "/api/datasets/:persistentId/versions/:latest-published/files"
	params := url.Values{"persistentId": {persistentID}}

	body, err := httputil.GetJSON(ctx, c.Client, c.Log, listURL, params, c.headers(), c.retryOpts())
	if err != nil {
		return nil, err
	}
	doc, err := types.ParseValue(body)
	if err != nil {
		return nil, fmt.Errorf("parsing dataverse file list: %w", err)
	}
	data, ok := doc.Get("data")
	if !ok || data.Kind() != types.KindList {
		return nil, fmt.Errorf("dataverse file list for %s: unexpected response structure", persistentID)
	}

	var metas []FileMeta
	for _, item := range data.Items() {
		df := item.GetPath("dataFile")
		id, ok := df.GetPath("id").ScalarValue().(int64)
		if !ok {
			continue
		}
		meta := FileMeta{
			ID:          id,
			Label:       item.GetPath("label").AsString(),
			ContentType: df.GetPath("contentType").AsString(),
			Checksum:    df.GetPath("checksum", "value").AsString(),
		}
		if meta.Label == "" {
			meta.Label = "unknown"
		}
		if size, ok := df.GetPath("filesize").ScalarValue().(int64); ok {
			meta.Size = size
		}
		metas = append(metas, meta)
	}
	c.Log.Info().Str("persistent_id", persistentID).Int("files", len(metas)).Msg("listed published files")
	return metas, nil
}

var mainFilePattern = regexp.MustCompile(`(?i)^pwt\d+\.(csv|tab)$`)

// MainDataFile picks the dataset's principal data file: a versioned
// pwt*.csv/.tab when present, otherwise the first csv/tab file.
func MainDataFile(metas []FileMeta) (FileMeta, error) {
	for _, m := range metas {
		if mainFilePattern.MatchString(m.Label) {
			return m, nil
		}
	}
	for _, m := range metas {
		lower := strings.ToLower(m.Label)
		if strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".tab") {
			return m, nil
		}
	}
	return FileMeta{}, fmt.Errorf("no csv or tab data file in dataset (%d files listed)", len(metas))
}

// DownloadFile fetches a file's bytes by id, first asking for the original
// upload format and falling back to the server default when that fails.
func (c *DataverseClient) DownloadFile(ctx context.Context, fileID int64) ([]byte, error) {
	fileURL := fmt.Sprintf("%s/api/access/datafile/%d", strings.TrimRight(c.Config.BaseURL, "/"), fileID)

	data, err := c.getBytes(ctx, fileURL, url.Values{"format": {"original"}})
	if err != nil {
		c.Log.Warn().Int64("file_id", fileID).Err(err).Msg("format=original failed, retrying without format")
		return c.getBytes(ctx, fileURL, nil)
	}
	return data, nil
}

func (c *DataverseClient) getBytes(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	resp, err := httputil.GetWithRetry(ctx, c.Client, c.Log, rawURL, params, c.headers(), c.retryOpts())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// FetchMainFile resolves the dataset's main data file through the local
// cache: a cached copy whose md5 matches the server's checksum is reused,
// anything else is downloaded and stored.
func (c *DataverseClient) FetchMainFile(ctx context.Context, persistentID string) (FileMeta, []byte, error) {
	metas, err := c.ListFiles(ctx, persistentID)
	if err != nil {
		return FileMeta{}, nil, err
	}
	meta, err := MainDataFile(metas)
	if err != nil {
		return FileMeta{}, nil, err
	}

	if c.Config.UseCache {
		data, hit, err := cache.Resolve(c.Config.CacheDir, meta.Label, meta.Checksum, c.Log)
		if err != nil {
			return FileMeta{}, nil, err
		}
		if hit {
			return meta, data, nil
		}
	}

	c.Log.Info().Str("file", meta.Label).Int64("file_id", meta.ID).Msg("downloading")
	data, err := c.DownloadFile(ctx, meta.ID)
	if err != nil {
		return FileMeta{}, nil, err
	}
	if c.Config.UseCache {
		path, err := cache.Store(c.Config.CacheDir, meta.Label, data)
		if err != nil {
			return FileMeta{}, nil, err
		}
		c.Log.Info().Str("path", path).Msg("stored raw file")
	}
	return meta, data, nil
}

// ParseDelimited reads a csv or tab file into a table of string cells,
// choosing the delimiter from the file name. Empty cells become nulls.
func ParseDelimited(label string, data []byte) (*types.Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	if strings.HasSuffix(strings.ToLower(label), ".tab") {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", label, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parsing %s: file is empty", label)
	}

	columns := records[0]
	rows := make([]types.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(types.Row, len(columns))
		for i, col := range columns {
			if i >= len(rec) || rec[i] == "" {
				row[col] = nil
				continue
			}
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
	return types.NewTable(columns, rows), nil
}

var (
	isoCandidates     = []string{"isocode", "countrycode", "iso", "code"}
	countryCandidates = []string{"country", "cty"}
	yearCandidates    = []string{"year", "yr"}
)

// NormalizePanel renames the detected key columns to iso/country/year,
// coerces year to an integer and the remaining columns to numbers where the
// cells parse, orders keys first and sorts by iso then year. Key detection
// is case-insensitive over fixed candidate lists; a panel missing any key
// is a structural error.
func NormalizePanel(t *types.Table) (*types.Table, error) {
	lower := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		lower[strings.ToLower(c)] = c
	}
	pick := func(candidates []string) string {
		for _, cand := range candidates {
			if orig, ok := lower[cand]; ok {
				return orig
			}
		}
		return ""
	}
	isoCol, ctyCol, yearCol := pick(isoCandidates), pick(countryCandidates), pick(yearCandidates)
	if isoCol == "" || ctyCol == "" || yearCol == "" {
		return nil, fmt.Errorf("panel is missing a key column (iso/country/year); columns: %s",
			strings.Join(t.Columns, ", "))
	}

	rename := map[string]string{isoCol: "iso", ctyCol: "country", yearCol: "year"}
	columns := []string{"iso", "country", "year"}
	for _, c := range t.Columns {
		if c == isoCol || c == ctyCol || c == yearCol {
			continue
		}
		columns = append(columns, c)
	}

	rows := make([]types.Row, 0, len(t.Rows))
	for _, src := range t.Rows {
		row := make(types.Row, len(columns))
		for _, c := range t.Columns {
			name := c
			if to, ok := rename[c]; ok {
				name = to
			}
			switch name {
			case "iso", "country":
				row[name] = src[c]
			case "year":
				row[name] = yearCell(src[c])
			default:
				row[name] = numericCell(src[c])
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := types.CellString(rows[i]["iso"]), types.CellString(rows[j]["iso"])
		if a != b {
			return a < b
		}
		ya, _ := rows[i]["year"].(int64)
		yb, _ := rows[j]["year"].(int64)
		return ya < yb
	})
	return types.NewTable(columns, rows), nil
}

func yearCell(v any) any {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return parsed
		}
	}
	return nil
}

// numericCell converts parseable string cells to int64/float64 and leaves
// everything else alone.
func numericCell(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return v
}

// FilterPanel applies the optional country and variable subsets. Country
// terms match either the iso code or the country name, case-insensitively.
// Requested variables that do not exist are logged and dropped.
func FilterPanel(t *types.Table, countries, keepVars []string, log zerolog.Logger) *types.Table {
	out := t
	if len(countries) > 0 {
		want := make(map[string]bool, len(countries))
		for _, c := range countries {
			want[strings.ToUpper(strings.TrimSpace(c))] = true
		}
		rows := make([]types.Row, 0, len(out.Rows))
		for _, row := range out.Rows {
			iso := strings.ToUpper(types.CellString(row["iso"]))
			cty := strings.ToUpper(types.CellString(row["country"]))
			if want[iso] || want[cty] {
				rows = append(rows, row)
			}
		}
		out = types.NewTable(out.Columns, rows)
	}

	if len(keepVars) > 0 {
		keep := []string{"iso", "country", "year"}
		for _, v := range keepVars {
			if col, ok := out.FindColumn(v); ok {
				keep = append(keep, col)
			} else {
				log.Warn().Str("variable", v).Msg("requested variable not in panel, dropping")
			}
		}
		rows := make([]types.Row, len(out.Rows))
		for i, src := range out.Rows {
			row := make(types.Row, len(keep))
			for _, c := range keep {
				row[c] = src[c]
			}
			rows[i] = row
		}
		out = types.NewTable(keep, rows)
	}
	return out
}

// FigureView melts the panel's variable columns into long form and pivots
// year onto the columns, one row per (iso, country, variable). Variable
// codes unknown to the label table describe themselves.
func FigureView(t *types.Table, lbl labels.Table) (*types.Table, error) {
	keys := map[string]bool{"iso": true, "country": true, "year": true}
	var varCols []string
	for _, c := range t.Columns {
		if !keys[c] {
			varCols = append(varCols, c)
		}
	}

	long := types.NewTable(
		[]string{"iso", "country", "variable_code", "variable_name", "year", "value"},
		make([]types.Row, 0, len(t.Rows)*len(varCols)),
	)
	for _, row := range t.Rows {
		for _, vc := range varCols {
			long.Rows = append(long.Rows, types.Row{
				"iso":           row["iso"],
				"country":       row["country"],
				"variable_code": vc,
				"variable_name": lbl.Describe(vc),
				"year":          row["year"],
				"value":         row[vc],
			})
		}
	}

	wide, err := view.ToWide(long, view.WideOptions{
		Keys:        []string{"iso", "country", "variable_code", "variable_name"},
		SeriesLabel: func(r types.Row) string { return types.CellString(r["year"]) },
		ValueColumn: "value",
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(wide.Rows, func(i, j int) bool {
		a, b := types.CellString(wide.Rows[i]["iso"]), types.CellString(wide.Rows[j]["iso"])
		if a != b {
			return a < b
		}
		return types.CellString(wide.Rows[i]["variable_code"]) < types.CellString(wide.Rows[j]["variable_code"])
	})
	return wide, nil
}

// LoadPanel is the full dataverse pipeline: resolve and parse the main data
// file, normalize the panel, apply optional subsets, and build the figure
// view. It returns (panel, figure).
func (c *DataverseClient) LoadPanel(ctx context.Context, persistentID string, countries, keepVars []string) (*types.Table, *types.Table, error) {
	meta, data, err := c.FetchMainFile(ctx, persistentID)
	if err != nil {
		return nil, nil, err
	}
	raw, err := ParseDelimited(meta.Label, data)
	if err != nil {
		return nil, nil, err
	}
	panel, err := NormalizePanel(raw)
	if err != nil {
		return nil, nil, err
	}
	panel = FilterPanel(panel, countries, keepVars, c.Log)

	figure, err := FigureView(panel, labels.PennWorldTable)
	if err != nil {
		return nil, nil, err
	}
	c.Log.Info().
		Int("panel_rows", panel.NumRows()).
		Int("figure_rows", figure.NumRows()).
		Msg("panel loaded")
	return panel, figure, nil
}
