// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source holds one thin client per statistical data source. Each
// client handles its source's URL scheme and envelope quirks and feeds raw
// records or tables into the shared pipeline stages.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/davidrpo/macrofetch/internal/httputil"
	"github.com/davidrpo/macrofetch/pkg/types"
)

// ErrInteractiveAuth marks source operations gated behind an interactive
// captcha/token exchange. Automating that flow is out of scope: callers get
// this error immediately instead of a half-working scrape attempt.
var ErrInteractiveAuth = errors.New("source requires interactive captcha/token authentication: unsupported")

// CatalogClient talks to a NADA microdata catalog (study-level metadata
// over a paginated search API).
type CatalogClient struct {
	Client *http.Client
	Log    zerolog.Logger
	Config types.CatalogConfig
}

func (c *CatalogClient) retryOpts() httputil.Options {
	return httputil.Options{
		MaxAttempts:    c.Config.Retry.MaxAttempts,
		InitialBackoff: c.Config.Retry.InitialBackoff,
	}
}

func (c *CatalogClient) header() http.Header {
	h := http.Header{}
	if c.Config.UserAgent != "" {
		h.Set("User-Agent", c.Config.UserAgent)
	}
	return h
}

// SearchStudies pages through /api/catalog/search (newest production date
// first) and returns matching study ids. Pagination ends on an empty page,
// a short page, maxPages, or once limit ids are collected.
func (c *CatalogClient) SearchStudies(ctx context.Context, q, dateFrom, dateTo string, limit int) ([]int64, error) {
	pageSize := c.Config.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	maxPages := c.Config.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	searchURL := strings.TrimRight(c.Config.BaseURL, "/") + "/api/catalog/search"

	fetch := func(ctx context.Context, offset, limitPerPage int) ([]int64, error) {
		params := url.Values{
			"ps":         {strconv.Itoa(limitPerPage)},
			"offset":     {strconv.Itoa(offset)},
			"sort_by":    {"proddate"},
			"sort_order": {"desc"},
		}
		if q != "" {
			params.Set("q", q)
		}
		if dateFrom != "" {
			params.Set("from", dateFrom)
		}
		if dateTo != "" {
			params.Set("to", dateTo)
		}

		body, err := httputil.GetJSON(ctx, c.Client, c.Log, searchURL, params, c.header(), c.retryOpts())
		if err != nil {
			return nil, err
		}

		doc, err := types.ParseValue(body)
		if err != nil {
			return nil, fmt.Errorf("parsing catalog search response: %w", err)
		}
		result, ok := doc.Get("result")
		if !ok {
			return nil, fmt.Errorf("catalog search response has no result block")
		}

		var ids []int64
		for _, row := range result.GetPath("rows").AsList() {
			id, ok := row.Get("id")
			if !ok || id.IsNull() {
				continue
			}
			if n, ok := id.ScalarValue().(int64); ok {
				ids = append(ids, n)
			}
		}
		c.Log.Info().Int("offset", offset).Int("studies", len(ids)).Msg("catalog search page")
		return ids, nil
	}

	return httputil.Paginate(ctx, fetch, pageSize, maxPages, limit)
}

// ExportMetadata fetches the full metadata document for one study.
func (c *CatalogClient) ExportMetadata(ctx context.Context, studyID int64) (types.Value, error) {
	exportURL := fmt.Sprintf("%s/metadata/export/%d/json", strings.TrimRight(c.Config.BaseURL, "/"), studyID)
	body, err := httputil.GetJSON(ctx, c.Client, c.Log, exportURL, nil, c.header(), c.retryOpts())
	if err != nil {
		return types.Null, err
	}
	doc, err := types.ParseValue(body)
	if err != nil {
		return types.Null, fmt.Errorf("parsing metadata export for study %d: %w", studyID, err)
	}
	if doc.Kind() != types.KindMap {
		return types.Null, fmt.Errorf("metadata export for study %d is not an object", studyID)
	}
	return doc, nil
}

// DownloadMicrodata would fetch a study's data files. The catalog fronts
// those with a captcha-protected token flow, so this fails fast.
func (c *CatalogClient) DownloadMicrodata(ctx context.Context, studyID int64) error {
	return fmt.Errorf("study %d: %w", studyID, ErrInteractiveAuth)
}

// StudyColumns is the fixed display order of the study-level table.
var StudyColumns = []string{
	"study_id", "idno", "title", "sub_title", "nation", "abbreviation",
	"year_start", "year_end", "proddate", "repositoryid", "version",
	"abstract", "data_kind", "geog_coverage", "universe_study",
	"keywords", "topics", "producers", "funding",
	"access_policy", "confidentiality", "conditions", "disclaimer",
	"citation_requirement", "doi",
}

// VariableColumns is the fixed display order of the variable-level table.
var VariableColumns = []string{
	"study_id", "study_title", "var_id", "var_name", "var_label", "var_type",
	"var_dcml", "var_intrvl", "var_wgt", "file_ids", "file_names",
	"universe", "q_preqtext", "q_qstnlit", "q_postqtxt", "notes",
	"n_categories", "categories_json",
}

// ParseStudy builds the study-level row from a metadata document. Catalog
// instances vary in where they put things, so every field is read through
// tolerant path access with fallbacks.
func ParseStudy(md types.Value, studyID int64) types.Row {
	sd := md.GetPath("study_desc")
	da := md.GetPath("data_access")
	if da.IsNull() {
		da = sd.GetPath("data_access")
	}

	row := types.Row{
		"study_id":             studyID,
		"idno":                 cell(firstNonNull(md.GetPath("idno"), sd.GetPath("title_statement", "idno"))),
		"title":                cell(firstNonNull(md.GetPath("title"), sd.GetPath("title_statement", "title"))),
		"sub_title":            cell(sd.GetPath("title_statement", "sub_title")),
		"nation":               cell(sd.GetPath("study_info", "nation", "name")),
		"abbreviation":         cell(sd.GetPath("title_statement", "alternate_title")),
		"year_start":           cell(sd.GetPath("study_info", "dates", "start")),
		"year_end":             cell(sd.GetPath("study_info", "dates", "end")),
		"proddate":             cell(firstNonNull(md.GetPath("proddate"), sd.GetPath("production_statement", "prod_date"))),
		"repositoryid":         cell(md.GetPath("repositoryid")),
		"version":              cell(firstNonNull(md.GetPath("version"), sd.GetPath("version_statement", "version"))),
		"abstract":             cell(sd.GetPath("study_info", "abstract")),
		"data_kind":            cell(sd.GetPath("study_info", "data_kind")),
		"geog_coverage":        cell(sd.GetPath("study_info", "geog_coverage")),
		"universe_study":       cell(sd.GetPath("study_info", "universe")),
		"keywords":             joinListField(sd.GetPath("keywords", "keyword"), "keyword", "value"),
		"topics":               joinListField(sd.GetPath("study_info", "topics", "topic"), "topic", "value"),
		"producers":            joinListField(sd.GetPath("production_statement", "producers", "producer"), "name"),
		"funding":              joinListField(sd.GetPath("funding", "agency"), "name", "agency"),
		"access_policy":        cell(firstNonNull(da.GetPath("access_policy"), da.GetPath("dataset_availability"))),
		"confidentiality":      cell(firstNonNull(da.GetPath("confidentiality"), sd.GetPath("data_access", "confidentiality"))),
		"conditions":           cell(da.GetPath("conditions")),
		"disclaimer":           cell(da.GetPath("disclaimer")),
		"citation_requirement": cell(firstNonNull(da.GetPath("cit_req"), da.GetPath("citation_requirements"))),
		"doi":                  cell(firstNonNull(md.GetPath("doi"), sd.GetPath("citation", "titlstat", "doi"))),
	}
	return row
}

// ParseVariables builds the variable-level rows from a metadata document.
// Variables with no usable name are skipped.
func ParseVariables(md types.Value, studyID int64) []types.Row {
	title := firstNonNull(md.GetPath("title"), md.GetPath("study_desc", "title_statement", "title")).AsString()

	fileNames := make(map[int64]string)
	for _, f := range md.GetPath("files").AsList() {
		id, ok := f.Get("file_id")
		if !ok {
			continue
		}
		if n, ok := id.ScalarValue().(int64); ok {
			fileNames[n] = f.GetPath("file_name").AsString()
		}
	}

	var rows []types.Row
	for _, v := range md.GetPath("variables").AsList() {
		name := strings.TrimSpace(firstNonNull(v.GetPath("name"), v.GetPath("var_name")).AsString())
		if name == "" {
			continue
		}
		label := strings.TrimSpace(firstNonNull(v.GetPath("labl"), v.GetPath("var_label"), v.GetPath("label")).AsString())

		fileIDs := variableFileIDs(v)
		var idStrs, nameStrs []string
		for _, fid := range fileIDs {
			idStrs = append(idStrs, strconv.FormatInt(fid, 10))
			nameStrs = append(nameStrs, fileNames[fid])
		}

		nCat, catJSON := normalizeCategories(firstNonNull(v.GetPath("var_catgry"), v.GetPath("categories")))

		row := types.Row{
			"study_id":        studyID,
			"study_title":     title,
			"var_id":          cell(firstNonNull(v.GetPath("vid"), v.GetPath("uid"), v.GetPath("id"))),
			"var_name":        name,
			"var_label":       label,
			"var_type":        cell(firstNonNull(v.GetPath("var_format"), v.GetPath("type"), v.GetPath("vartype"))),
			"var_dcml":        cell(v.GetPath("var_dcml")),
			"var_intrvl":      cell(v.GetPath("var_intrvl")),
			"var_wgt":         cell(v.GetPath("var_wgt")),
			"file_ids":        nilIfEmpty(strings.Join(idStrs, ";")),
			"file_names":      nilIfEmpty(strings.Join(nameStrs, ";")),
			"universe":        cell(firstNonNull(v.GetPath("universe"), v.GetPath("universe_txt"))),
			"q_preqtext":      cell(firstNonNull(v.GetPath("qstn", "qstn_preqtext"), v.GetPath("qstn_preqtext"))),
			"q_qstnlit":       cell(firstNonNull(v.GetPath("qstn", "qstn_qstnlit"), v.GetPath("qstn_qstnlit"))),
			"q_postqtxt":      cell(firstNonNull(v.GetPath("qstn", "qstn_postqtxt"), v.GetPath("qstn_postqtxt"))),
			"notes":           cell(firstNonNull(v.GetPath("notes"), v.GetPath("txt"))),
			"n_categories":    nCat,
			"categories_json": catJSON,
		}
		rows = append(rows, row)
	}
	return rows
}

// variableFileIDs normalizes the file association, which arrives as a list,
// a single id, or nothing.
func variableFileIDs(v types.Value) []int64 {
	files := firstNonNull(v.GetPath("files"), v.GetPath("file_id"))
	var ids []int64
	for _, f := range files.AsList() {
		switch n := f.ScalarValue().(type) {
		case int64:
			ids = append(ids, n)
		case string:
			if parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				ids = append(ids, parsed)
			}
		}
	}
	return ids
}

// normalizeCategories extracts a variable's category list, which may hang
// under var_catgry (a wrapper map) or arrive as a bare list, and renders it
// as (count, compact JSON). Missing or malformed categories yield nulls.
func normalizeCategories(cat types.Value) (any, any) {
	src := cat
	if cat.Kind() == types.KindMap {
		inner, ok := cat.Get("var_catgry")
		if !ok || inner.Kind() != types.KindList {
			return nil, nil
		}
		src = inner
	}
	if src.Kind() != types.KindList {
		return nil, nil
	}

	var items []types.Value
	for _, c := range src.Items() {
		val := firstNonNull(c.GetPath("value"), c.GetPath("cat_val"))
		lab := firstNonNull(c.GetPath("label"), c.GetPath("cat_lab"))
		items = append(items, types.Map(
			types.Field{Key: "value", Value: val},
			types.Field{Key: "label", Value: lab},
		))
	}
	if len(items) == 0 {
		return nil, nil
	}
	encoded, err := types.List(items...).MarshalJSON()
	if err != nil {
		return nil, nil
	}
	return int64(len(items)), string(encoded)
}

// VariableFilter restricts the variable-level rows. Zero-valued fields are
// inactive.
type VariableFilter struct {
	Names      []string // exact names, case-insensitive
	NameRegex  string
	LabelRegex string
	FileIDs    []int64
}

// Compiled is a VariableFilter ready to match rows.
type Compiled struct {
	names   map[string]bool
	nameRx  *regexp.Regexp
	labelRx *regexp.Regexp
	fileIDs map[int64]bool
}

// Compile validates the filter's regular expressions.
func (f VariableFilter) Compile() (*Compiled, error) {
	c := &Compiled{}
	if len(f.Names) > 0 {
		c.names = make(map[string]bool, len(f.Names))
		for _, n := range f.Names {
			c.names[strings.ToLower(strings.TrimSpace(n))] = true
		}
	}
	if f.NameRegex != "" {
		rx, err := regexp.Compile("(?i)" + f.NameRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid variable name regex: %w", err)
		}
		c.nameRx = rx
	}
	if f.LabelRegex != "" {
		rx, err := regexp.Compile("(?i)" + f.LabelRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid variable label regex: %w", err)
		}
		c.labelRx = rx
	}
	if len(f.FileIDs) > 0 {
		c.fileIDs = make(map[int64]bool, len(f.FileIDs))
		for _, id := range f.FileIDs {
			c.fileIDs[id] = true
		}
	}
	return c, nil
}

// Match reports whether a variable row passes every active criterion.
func (c *Compiled) Match(row types.Row) bool {
	name := types.CellString(row["var_name"])
	if c.names != nil && !c.names[strings.ToLower(name)] {
		return false
	}
	if c.nameRx != nil && !c.nameRx.MatchString(name) {
		return false
	}
	if c.labelRx != nil && !c.labelRx.MatchString(types.CellString(row["var_label"])) {
		return false
	}
	if c.fileIDs != nil {
		hit := false
		for _, part := range strings.Split(types.CellString(row["file_ids"]), ";") {
			if id, err := strconv.ParseInt(part, 10, 64); err == nil && c.fileIDs[id] {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// --- small value helpers shared by the parsers ---

func firstNonNull(vals ...types.Value) types.Value {
	for _, v := range vals {
		if !v.IsNull() {
			return v
		}
	}
	return types.Null
}

// cell converts a scalar Value into a table cell, null staying nil.
func cell(v types.Value) any {
	if v.IsNull() {
		return nil
	}
	if v.Kind() == types.KindScalar {
		return v.ScalarValue()
	}
	// Non-scalar metadata fields are kept as compact JSON text.
	b, err := v.MarshalJSON()
	if err != nil {
		return nil
	}
	return string(b)
}

// joinListField renders a list of tagged objects as "; "-joined text,
// reading the first present key per item.
func joinListField(v types.Value, keys ...string) any {
	var parts []string
	for _, item := range v.AsList() {
		for _, k := range keys {
			if s := item.GetPath(k).AsString(); s != "" {
				parts = append(parts, s)
				break
			}
		}
	}
	return nilIfEmpty(strings.Join(parts, "; "))
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
