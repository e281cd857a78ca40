// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/davidrpo/macrofetch/internal/pipeline"
	"github.com/davidrpo/macrofetch/internal/view"
	"github.com/davidrpo/macrofetch/pkg/types"
)

// flowKeyColumns lead every flow table, in this order, when present.
var flowKeyColumns = []string{"date", "time", "value", "series_name", "flow_id"}

// FlowStore consolidates per-flow CSV exports from a local data directory
// into one long table and a date-indexed wide view.
type FlowStore struct {
	Log    zerolog.Logger
	Config types.FlowsConfig
}

// ListFlows returns the flow ids available in the data directory, sorted.
// A flow id is the base name of a .csv file.
func (s *FlowStore) ListFlows() ([]string, error) {
	entries, err := os.ReadDir(s.Config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("reading flow data directory: %w", err)
	}
	var flows []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		flows = append(flows, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(flows)
	s.Log.Info().Int("flows", len(flows)).Str("dir", s.Config.DataDir).Msg("flow CSVs found")
	return flows, nil
}

// LoadFlow reads one flow's CSV and standardizes it: flow_id injected from
// the file name when absent, date derived from time when absent, value
// falling back to OBS_VALUE, key columns ordered first and always present.
func (s *FlowStore) LoadFlow(flowID string) (*types.Table, error) {
	path := filepath.Join(s.Config.DataDir, flowID+".csv")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", flowID, err)
	}
	return s.parseFlow(flowID, raw)
}

func (s *FlowStore) parseFlow(flowID string, raw []byte) (*types.Table, error) {
	decoded, err := decodeBytes(raw, s.Config.Encoding)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", flowID, err)
	}

	r := csv.NewReader(bytes.NewReader(decoded))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", flowID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("flow %s: file is empty", flowID)
	}

	header := records[0]
	rows := make([]types.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(types.Row, len(header)+2)
		for i, col := range header {
			if i >= len(rec) || rec[i] == "" {
				row[col] = nil
				continue
			}
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
	t := types.NewTable(header, rows)

	// flow_id always reflects the file the row came from.
	if !t.HasColumn("flow_id") {
		t.Columns = append(t.Columns, "flow_id")
	}
	for _, row := range t.Rows {
		row["flow_id"] = flowID
	}

	if !t.HasColumn("date") && t.HasColumn("time") {
		deriveDateColumn(t)
	}

	for _, must := range flowKeyColumns {
		if t.HasColumn(must) {
			continue
		}
		t.Columns = append(t.Columns, must)
		for _, row := range t.Rows {
			if must == "value" {
				row["value"] = row["OBS_VALUE"]
			} else {
				row[must] = nil
			}
		}
	}

	// value is numeric or null; time stays text.
	for _, row := range t.Rows {
		row["value"] = floatCell(row["value"])
	}

	return types.NewTable(orderFlowColumns(t.Columns), t.Rows), nil
}

// flowDateLayouts are tried column-wide against digit-stripped time values.
// The first layout that parses anything wins for the whole column; later
// rows that do not fit it become null dates.
var flowDateLayouts = []string{"20060102", "200601", "2006"}

func deriveDateColumn(t *types.Table) {
	cleaned := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		var b strings.Builder
		for _, ch := range types.CellString(row["time"]) {
			if ch >= '0' && ch <= '9' {
				b.WriteRune(ch)
			}
		}
		cleaned[i] = b.String()
	}

	for _, layout := range flowDateLayouts {
		parsed := make([]any, len(cleaned))
		matched := false
		for i, s := range cleaned {
			if ts, err := time.Parse(layout, s); err == nil {
				parsed[i] = ts
				matched = true
			}
		}
		if !matched {
			continue
		}
		t.Columns = append(t.Columns, "date")
		for i, row := range t.Rows {
			row["date"] = parsed[i]
		}
		return
	}

	t.Columns = append(t.Columns, "date")
	for _, row := range t.Rows {
		row["date"] = nil
	}
}

func orderFlowColumns(columns []string) []string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	var ordered []string
	for _, c := range flowKeyColumns {
		if present[c] {
			ordered = append(ordered, c)
		}
	}
	lead := make(map[string]bool, len(ordered))
	for _, c := range ordered {
		lead[c] = true
	}
	for _, c := range columns {
		if !lead[c] {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

func floatCell(v any) any {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return n
	case int64:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return nil
}

func decodeBytes(raw []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return raw, nil
	case "latin1", "latin-1", "iso-8859-1":
		return io.ReadAll(transform.NewReader(bytes.NewReader(raw), charmap.ISO8859_1.NewDecoder()))
	case "windows-1252", "cp1252":
		return io.ReadAll(transform.NewReader(bytes.NewReader(raw), charmap.Windows1252.NewDecoder()))
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// Consolidate loads the named flows (all available ones when flows is
// empty) and merges them into a long table sorted by flow_id, date, time,
// plus a wide view keyed by date with one "FLOW :: series" column per
// series. Flows that fail to load are recorded as unit errors; the whole
// consolidation fails only when none load.
func (s *FlowStore) Consolidate(ctx context.Context, flows []string) (*types.PipelineResult, error) {
	if len(flows) == 0 {
		var err error
		flows, err = s.ListFlows()
		if err != nil {
			return nil, err
		}
	}
	if len(flows) == 0 {
		return nil, fmt.Errorf("no flows to consolidate in %s", s.Config.DataDir)
	}

	units := make([]*pipeline.Unit, 0, len(flows))
	for _, flowID := range flows {
		flowID := flowID
		units = append(units, &pipeline.Unit{
			ID: flowID,
			Fetch: func(ctx context.Context) (any, error) {
				return os.ReadFile(filepath.Join(s.Config.DataDir, flowID+".csv"))
			},
			Parse: func(raw any) ([]pipeline.Output, error) {
				t, err := s.parseFlow(flowID, raw.([]byte))
				if err != nil {
					return nil, err
				}
				return []pipeline.Output{{Name: "long", Table: t}}, nil
			},
		})
	}

	batch, err := pipeline.Run(ctx, units, s.Log)
	if err != nil {
		return nil, err
	}

	long := batch.Table("long")
	sort.SliceStable(long.Rows, func(i, j int) bool {
		a, b := long.Rows[i], long.Rows[j]
		if fa, fb := types.CellString(a["flow_id"]), types.CellString(b["flow_id"]); fa != fb {
			return fa < fb
		}
		if da, db := types.CellString(a["date"]), types.CellString(b["date"]); da != db {
			return da < db
		}
		return types.CellString(a["time"]) < types.CellString(b["time"])
	})

	wide, err := view.ToWide(long, view.WideOptions{
		Keys: []string{"date"},
		SeriesLabel: func(r types.Row) string {
			flow := types.CellString(r["flow_id"])
			series := types.CellString(r["series_name"])
			if series == "" {
				series = "series"
			}
			return flow + " :: " + series
		},
		ValueColumn: "value",
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(wide.Rows, func(i, j int) bool {
		return types.CellString(wide.Rows[i]["date"]) < types.CellString(wide.Rows[j]["date"])
	})

	return &types.PipelineResult{Long: long, Wide: wide, Errors: batch.Errors}, nil
}

// ReadFlowsFile reads a flow-id list from a txt (one id per line, # for
// comments), json (array of strings or of objects with a flow_id key), or
// csv file (flow_id-ish column, else the first column).
func ReadFlowsFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		var flows []string
		for _, line := range strings.Split(string(raw), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			flows = append(flows, line)
		}
		return flows, nil

	case ".json":
		doc, err := types.ParseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("flows file %s: %w", path, err)
		}
		if doc.Kind() != types.KindList {
			return nil, fmt.Errorf("flows file %s: expected a JSON array", path)
		}
		var flows []string
		for _, item := range doc.Items() {
			switch item.Kind() {
			case types.KindScalar:
				flows = append(flows, item.AsString())
			case types.KindMap:
				id := item.GetPath("flow_id").AsString()
				if id == "" {
					return nil, fmt.Errorf("flows file %s: object entry without flow_id", path)
				}
				flows = append(flows, id)
			default:
				return nil, fmt.Errorf("flows file %s: unsupported entry", path)
			}
		}
		return flows, nil

	case ".csv":
		r := csv.NewReader(bytes.NewReader(raw))
		r.FieldsPerRecord = -1
		records, err := r.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("flows file %s: %w", path, err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("flows file %s: file is empty", path)
		}
		col := 0
		for i, name := range records[0] {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "flow_id", "flow", "id":
				col = i
			}
		}
		var flows []string
		for _, rec := range records[1:] {
			if col < len(rec) && strings.TrimSpace(rec[col]) != "" {
				flows = append(flows, strings.TrimSpace(rec[col]))
			}
		}
		return flows, nil
	}
	return nil, fmt.Errorf("flows file %s: unsupported extension", path)
}
