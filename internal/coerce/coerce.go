// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coerce maps table columns to target types, either from a declared
// schema or by per-column inference, and canonicalizes column names. A bad
// value never fails a run: it becomes the null marker. The only hard error
// is a structurally invalid column set, such as two columns collapsing to
// the same canonical name.
package coerce

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/davidrpo/macrofetch/pkg/types"
)

// DefaultInferThreshold is the fraction of non-null values in a column that
// must parse as timestamps for inference to commit the column to datetime.
// This is a policy default, tunable through Options.InferThreshold.
const DefaultInferThreshold = 0.9

// Options controls coercion behavior.
type Options struct {
	// SnakeCase renames every column to canonical lower_snake_case.
	SnakeCase bool

	// StripText trims surrounding whitespace from text cells.
	StripText bool

	// InferThreshold overrides DefaultInferThreshold when > 0.
	InferThreshold float64
}

// datetimeLayouts are tried in order when parsing a timestamp cell.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
}

const dateLayout = "2006-01-02"

// Apply returns a new table with every column coerced to its target type.
// Columns matching a schema entry (case-insensitive, directly or through
// their canonical snake_case name) take the declared type; the rest fall
// back to inference: datetime when at least the threshold fraction of
// non-null values parses, text otherwise.
func Apply(t *types.Table, schema types.ColumnSchema, opts Options) (*types.Table, error) {
	threshold := opts.InferThreshold
	if threshold <= 0 {
		threshold = DefaultInferThreshold
	}

	out := t.Clone()
	for _, col := range out.Columns {
		spec, declared := schema.Lookup(col)
		if !declared {
			spec, declared = schema.Lookup(SnakeCase(col))
		}
		target := spec.Type
		if !declared || target == types.TypeUnknown {
			target = inferType(out, col, threshold)
		}
		coerceColumn(out, col, target, opts.StripText)
	}

	if opts.SnakeCase {
		renamed, err := renameCanonical(out)
		if err != nil {
			return nil, err
		}
		out = renamed
	}
	return out, nil
}

// inferType decides a column's type from its values: datetime when the
// parse success ratio over non-null values reaches threshold, text
// otherwise. A column with no non-null values stays text.
func inferType(t *types.Table, col string, threshold float64) types.ColumnType {
	var nonNull, parsed int
	for _, row := range t.Rows {
		cell := row[col]
		if cell == nil {
			continue
		}
		nonNull++
		if _, ok := ParseDatetime(cellText(cell)); ok {
			parsed++
		}
	}
	if nonNull > 0 && float64(parsed)/float64(nonNull) >= threshold {
		return types.TypeDatetime
	}
	return types.TypeText
}

func coerceColumn(t *types.Table, col string, target types.ColumnType, strip bool) {
	for _, row := range t.Rows {
		row[col] = coerceCell(row[col], target, strip)
	}
}

// coerceCell converts one cell to the target type, yielding nil for
// unparsable values.
func coerceCell(cell any, target types.ColumnType, strip bool) any {
	if cell == nil {
		return nil
	}
	switch target {
	case types.TypeDate:
		if ts, ok := cell.(time.Time); ok {
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
		}
		ts, err := time.Parse(dateLayout, strings.TrimSpace(cellText(cell)))
		if err != nil {
			return nil
		}
		return ts
	case types.TypeDatetime:
		if ts, ok := cell.(time.Time); ok {
			return ts
		}
		ts, ok := ParseDatetime(cellText(cell))
		if !ok {
			return nil
		}
		return ts
	case types.TypeNumeric:
		switch v := cell.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case bool:
			return nil
		default:
			f, err := strconv.ParseFloat(strings.TrimSpace(cellText(cell)), 64)
			if err != nil {
				return nil
			}
			return f
		}
	default: // text and unknown
		s := cellText(cell)
		if strip {
			s = strings.TrimSpace(s)
		}
		return s
	}
}

// ParseDatetime parses a timestamp string against the supported layouts.
func ParseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range datetimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func cellText(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

var (
	lowerUpper    = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	separatorRuns = regexp.MustCompile(`[\s\-/]+`)
)

// SnakeCase applies the canonical renaming rule: underscores inserted at
// lower-to-upper transitions, whitespace/hyphen/slash runs collapsed to a
// single underscore, doubled underscores collapsed, everything lowercased.
func SnakeCase(name string) string {
	s := lowerUpper.ReplaceAllString(name, "${1}_${2}")
	s = separatorRuns.ReplaceAllString(s, "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.ToLower(s)
}

// renameCanonical rewrites every column name through SnakeCase. Two source
// columns collapsing to one canonical name is a structural error.
func renameCanonical(t *types.Table) (*types.Table, error) {
	mapping := make(map[string]string, len(t.Columns))
	cols := make([]string, len(t.Columns))
	seen := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		nc := SnakeCase(c)
		if prev, dup := seen[nc]; dup {
			return nil, fmt.Errorf("columns %q and %q both canonicalize to %q", prev, c, nc)
		}
		seen[nc] = c
		mapping[c] = nc
		cols[i] = nc
	}

	rows := make([]types.Row, len(t.Rows))
	for i, row := range t.Rows {
		nr := make(types.Row, len(row))
		for k, v := range row {
			nr[mapping[k]] = v
		}
		rows[i] = nr
	}
	return types.NewTable(cols, rows), nil
}
