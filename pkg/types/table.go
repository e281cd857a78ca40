// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data model shared by all pipeline stages:
// the Value tagged union raw records arrive as, the rectangular Table
// stages hand each other, column schemas, and stage configuration.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Row maps a column name to one cell. Cells hold nil (the null marker),
// string, bool, int64, float64 or time.Time. A nil cell is distinct from a
// present empty string.
type Row map[string]any

// Table is an ordered sequence of rows sharing one column set. Columns
// establishes display order. Stages return a new Table instead of mutating
// their input, so a failed stage never leaves a half-transformed table
// behind.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable builds a table from an explicit column order and rows. Cells for
// columns a row does not carry read back as the null marker.
func NewTable(columns []string, rows []Row) *Table {
	return &Table{Columns: columns, Rows: rows}
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.Columns) }

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// HasColumn reports whether name is in the column set.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// FindColumn returns the stored column name matching name, trying an exact
// match first and a case-insensitive match second. The sources this tool
// talks to are inconsistent about column casing.
func (t *Table) FindColumn(name string) (string, bool) {
	for _, c := range t.Columns {
		if c == name {
			return c, true
		}
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// Clone returns a deep copy: new column slice, new row maps. Cell values are
// shared (they are immutable scalars).
func (t *Table) Clone() *Table {
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		nr := make(Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		rows[i] = nr
	}
	return &Table{Columns: cols, Rows: rows}
}

// Append returns a new table holding t's rows followed by other's rows, with
// the column set unioned in first-seen order. Used when merging per-unit
// tables into a batch aggregate.
func (t *Table) Append(other *Table) *Table {
	cols := make([]string, len(t.Columns))
	copy(cols, t.Columns)
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		seen[c] = true
	}
	for _, c := range other.Columns {
		if !seen[c] {
			cols = append(cols, c)
			seen[c] = true
		}
	}
	rows := make([]Row, 0, len(t.Rows)+len(other.Rows))
	rows = append(rows, t.Rows...)
	rows = append(rows, other.Rows...)
	return &Table{Columns: cols, Rows: rows}
}

// CellString renders a cell for display or text output. Null renders as the
// empty string; dates and timestamps render ISO 8601.
func CellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02T15:04:05")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ColumnType is a declared target type for one column.
type ColumnType string

const (
	TypeDate     ColumnType = "date"
	TypeDatetime ColumnType = "datetime"
	TypeNumeric  ColumnType = "numeric"
	TypeText     ColumnType = "text"
	TypeUnknown  ColumnType = "unknown"
)

// ColumnSpec pairs a source column name with its declared type and an
// optional human-readable label.
type ColumnSpec struct {
	Name  string
	Type  ColumnType
	Label string
}

// ColumnSchema is an ordered list of declared column types. It is optional:
// when a source omits it, types are inferred per column.
type ColumnSchema []ColumnSpec

// Lookup finds the declared entry for a column, matching case-insensitively.
func (s ColumnSchema) Lookup(name string) (ColumnSpec, bool) {
	for _, spec := range s {
		if strings.EqualFold(spec.Name, name) {
			return spec, true
		}
	}
	return ColumnSpec{}, false
}
