// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package clean applies the post-coercion table cleanups: equality and
// date-range row filters, all-null column removal, exact-duplicate removal,
// and column subsetting. Filters over unknown columns warn and are skipped
// rather than failing the run.
package clean

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/davidrpo/macrofetch/internal/coerce"
	"github.com/davidrpo/macrofetch/pkg/types"
)

// DateRange is an inclusive date filter over one column. Start and End are
// "YYYY-MM-DD" dates or full timestamps; either may be empty for a
// half-open range. A date-only End is extended to the end of that day, so a
// day-granularity bound captures the whole day.
type DateRange struct {
	Column string
	Start  string
	End    string
}

// Options selects which cleanups to apply. The zero value applies none.
type Options struct {
	// Equality keeps, per named column, only rows whose trimmed string
	// value is in the allowed set.
	Equality map[string][]string

	// Date filters rows to an inclusive date range.
	Date DateRange

	// DropAllNullColumns removes columns that are null in every row.
	DropAllNullColumns bool

	// DropDuplicates removes exact full-row duplicates, keeping the first
	// occurrence.
	DropDuplicates bool

	// Subset restricts the result to the named columns, in the requested
	// order. Missing columns are warned about and dropped.
	Subset []string

	// SnakeCase indicates the table's columns were canonicalized, so
	// requested filter/subset names are canonicalized the same way before
	// lookup.
	SnakeCase bool
}

// Apply runs the configured cleanups in a fixed order (null-column drop,
// dedup, equality filters, date range, subset) and returns a new table.
func Apply(t *types.Table, opts Options, log zerolog.Logger) (*types.Table, error) {
	out := t.Clone()

	if opts.DropAllNullColumns {
		out = dropAllNullColumns(out)
	}
	if opts.DropDuplicates {
		out = dropDuplicates(out)
	}
	for col, allowed := range opts.Equality {
		out = equalityFilter(out, col, allowed, opts.SnakeCase, log)
	}
	if opts.Date.Column != "" && (opts.Date.Start != "" || opts.Date.End != "") {
		filtered, err := dateFilter(out, opts.Date, opts.SnakeCase, log)
		if err != nil {
			return nil, err
		}
		out = filtered
	}
	if len(opts.Subset) > 0 {
		out = subset(out, opts.Subset, opts.SnakeCase, log)
	}
	return out, nil
}

// resolveColumn maps a requested column name onto the table, canonicalizing
// it first when the table was snake_cased.
func resolveColumn(t *types.Table, name string, snake bool) (string, bool) {
	if snake {
		name = coerce.SnakeCase(name)
	}
	return t.FindColumn(name)
}

func dropAllNullColumns(t *types.Table) *types.Table {
	var keep []string
	for _, col := range t.Columns {
		allNull := true
		for _, row := range t.Rows {
			if row[col] != nil {
				allNull = false
				break
			}
		}
		if !allNull || len(t.Rows) == 0 {
			keep = append(keep, col)
		}
	}
	return project(t, keep)
}

func dropDuplicates(t *types.Table) *types.Table {
	seen := make(map[string]bool, len(t.Rows))
	var rows []types.Row
	for _, row := range t.Rows {
		key := fingerprint(row, t.Columns)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, row)
	}
	return types.NewTable(t.Columns, rows)
}

// fingerprint renders a row deterministically over the column order,
// distinguishing null from empty string.
func fingerprint(row types.Row, columns []string) string {
	var b strings.Builder
	for _, col := range columns {
		cell := row[col]
		if cell == nil {
			b.WriteString("\x00nil")
		} else {
			fmt.Fprintf(&b, "%T:%v", cell, cell)
		}
		b.WriteByte('\x1f')
	}
	return b.String()
}

func equalityFilter(t *types.Table, col string, allowed []string, snake bool, log zerolog.Logger) *types.Table {
	name, ok := resolveColumn(t, col, snake)
	if !ok {
		log.Warn().Str("column", col).Msg("equality filter skipped, column not found")
		return t
	}

	set := make(map[string]bool, len(allowed))
	for _, v := range allowed {
		set[strings.TrimSpace(v)] = true
	}

	var rows []types.Row
	for _, row := range t.Rows {
		if set[strings.TrimSpace(types.CellString(row[name]))] {
			rows = append(rows, row)
		}
	}
	return types.NewTable(t.Columns, rows)
}

func dateFilter(t *types.Table, dr DateRange, snake bool, log zerolog.Logger) (*types.Table, error) {
	name, ok := resolveColumn(t, dr.Column, snake)
	if !ok {
		log.Warn().Str("column", dr.Column).Msg("date filter skipped, column not found")
		return t, nil
	}

	var start, end time.Time
	if dr.Start != "" {
		ts, ok := coerce.ParseDatetime(dr.Start)
		if !ok {
			return nil, fmt.Errorf("unparsable date filter start %q", dr.Start)
		}
		start = ts
	}
	if dr.End != "" {
		ts, ok := coerce.ParseDatetime(dr.End)
		if !ok {
			return nil, fmt.Errorf("unparsable date filter end %q", dr.End)
		}
		// A bare date as the end bound means "through that whole day".
		if len(strings.TrimSpace(dr.End)) == len("2006-01-02") {
			ts = ts.Add(24*time.Hour - time.Nanosecond)
		}
		end = ts
	}

	var rows []types.Row
	for _, row := range t.Rows {
		ts, ok := cellTime(row[name])
		if !ok {
			continue
		}
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end) {
			continue
		}
		rows = append(rows, row)
	}
	return types.NewTable(t.Columns, rows), nil
}

// cellTime extracts a timestamp from a cell, parsing strings on the fly for
// columns that were not coerced to datetime.
func cellTime(cell any) (time.Time, bool) {
	switch v := cell.(type) {
	case time.Time:
		return v, true
	case string:
		return coerce.ParseDatetime(v)
	default:
		return time.Time{}, false
	}
}

func subset(t *types.Table, requested []string, snake bool, log zerolog.Logger) *types.Table {
	var keep []string
	var missing []string
	for _, col := range requested {
		name, ok := resolveColumn(t, col, snake)
		if !ok {
			missing = append(missing, col)
			continue
		}
		keep = append(keep, name)
	}
	if len(missing) > 0 {
		log.Warn().Strs("columns", missing).Msg("subset columns not found, dropping")
	}
	return project(t, keep)
}

// project returns a new table restricted to cols, in that order.
func project(t *types.Table, cols []string) *types.Table {
	rows := make([]types.Row, len(t.Rows))
	for i, row := range t.Rows {
		nr := make(types.Row, len(cols))
		for _, c := range cols {
			nr[c] = row[c]
		}
		rows[i] = nr
	}
	return types.NewTable(cols, rows)
}
