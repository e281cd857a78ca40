// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package flatten converts lists of arbitrarily nested records into flat
// rectangular tables: one row per record, nested paths joined into dotted
// column names, and the column set unioned across records in first-seen
// order.
package flatten

import (
	"github.com/davidrpo/macrofetch/pkg/types"
)

// syntheticColumn names the single field a non-map record is wrapped into.
// Defensive default for sources that occasionally send a bare scalar or
// list where a record is expected.
const syntheticColumn = "value"

// Records flattens a batch. A record missing a leaf that siblings carry
// gets the null marker for that column, never a missing key, so every row
// shares the full column superset.
func Records(records []types.Value) *types.Table {
	var columns []string
	seen := make(map[string]bool)
	rows := make([]types.Row, 0, len(records))

	addColumn := func(name string) {
		if !seen[name] {
			seen[name] = true
			columns = append(columns, name)
		}
	}

	for _, rec := range records {
		row := types.Row{}
		if rec.Kind() == types.KindMap {
			flattenInto(row, "", rec, addColumn)
		} else {
			addColumn(syntheticColumn)
			row[syntheticColumn] = leafCell(rec)
		}
		rows = append(rows, row)
	}

	// Fill the column superset: absent leaves become explicit nulls.
	for _, row := range rows {
		for _, c := range columns {
			if _, ok := row[c]; !ok {
				row[c] = nil
			}
		}
	}

	return types.NewTable(columns, rows)
}

func flattenInto(row types.Row, prefix string, v types.Value, addColumn func(string)) {
	for _, f := range v.Fields() {
		name := f.Key
		if prefix != "" {
			name = prefix + "." + f.Key
		}
		if f.Value.Kind() == types.KindMap {
			flattenInto(row, name, f.Value, addColumn)
			continue
		}
		addColumn(name)
		row[name] = leafCell(f.Value)
	}
}

// leafCell converts a non-map leaf into a table cell. Lists have no scalar
// representation, so they are kept as compact JSON text.
func leafCell(v types.Value) any {
	switch v.Kind() {
	case types.KindNull:
		return nil
	case types.KindScalar:
		return v.ScalarValue()
	case types.KindList:
		b, err := v.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(b)
	default:
		return nil
	}
}
