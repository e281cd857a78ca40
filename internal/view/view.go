// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package view reshapes long (tidy) tables into wide tables keyed by an
// entity axis, one column per series.
package view

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/davidrpo/macrofetch/internal/coerce"
	"github.com/davidrpo/macrofetch/pkg/types"
)

// WideOptions configures a long-to-wide pivot.
type WideOptions struct {
	// Keys are the entity/time key columns. Rows sharing one key tuple
	// collapse into a single wide row, keys appearing in first-seen order.
	Keys []string

	// SeriesLabel derives the wide column label for a long row.
	SeriesLabel func(types.Row) string

	// ValueColumn names the long column whose value lands at the
	// (entity, series) intersection.
	ValueColumn string
}

// ToWide pivots a long table: rows grouped by the key tuple, series labels
// becoming columns. When the same (entity, series) pair occurs twice the
// first value seen wins; "first" aggregation is the documented collision
// policy, so no diagnostic is emitted.
//
// Output column order is the keys first, then non-chronological series
// labels in first-seen order, then chronological labels (year numbers,
// dates) sorted ascending.
func ToWide(t *types.Table, opts WideOptions) (*types.Table, error) {
	if len(opts.Keys) == 0 {
		return nil, fmt.Errorf("pivot requires at least one key column")
	}
	keyCols := make([]string, len(opts.Keys))
	for i, k := range opts.Keys {
		name, ok := t.FindColumn(k)
		if !ok {
			return nil, fmt.Errorf("pivot key column %q not found", k)
		}
		keyCols[i] = name
	}
	valueCol, ok := t.FindColumn(opts.ValueColumn)
	if !ok {
		return nil, fmt.Errorf("pivot value column %q not found", opts.ValueColumn)
	}
	if opts.SeriesLabel == nil {
		return nil, fmt.Errorf("pivot requires a series label function")
	}

	var entityOrder []string
	entities := make(map[string]types.Row)

	var labelOrder []string
	labelSeen := make(map[string]bool)

	for _, row := range t.Rows {
		ek := entityKey(row, keyCols)
		wide, exists := entities[ek]
		if !exists {
			wide = types.Row{}
			for _, k := range keyCols {
				wide[k] = row[k]
			}
			entities[ek] = wide
			entityOrder = append(entityOrder, ek)
		}

		label := opts.SeriesLabel(row)
		if label == "" {
			continue
		}
		if !labelSeen[label] {
			labelSeen[label] = true
			labelOrder = append(labelOrder, label)
		}
		// First value wins on collision.
		if _, taken := wide[label]; !taken {
			wide[label] = row[valueCol]
		}
	}

	columns := append([]string{}, keyCols...)
	columns = append(columns, orderLabels(labelOrder)...)

	rows := make([]types.Row, len(entityOrder))
	for i, ek := range entityOrder {
		row := entities[ek]
		for _, c := range columns {
			if _, ok := row[c]; !ok {
				row[c] = nil
			}
		}
		rows[i] = row
	}
	return types.NewTable(columns, rows), nil
}

func entityKey(row types.Row, keyCols []string) string {
	key := ""
	for _, k := range keyCols {
		key += types.CellString(row[k]) + "\x1f"
	}
	return key
}

// orderLabels groups non-chronological labels first, keeping their
// first-seen order, followed by chronological labels sorted ascending.
func orderLabels(labels []string) []string {
	var plain []string
	type chron struct {
		label string
		when  time.Time
	}
	var timed []chron

	for _, l := range labels {
		if ts, ok := chronological(l); ok {
			timed = append(timed, chron{label: l, when: ts})
		} else {
			plain = append(plain, l)
		}
	}
	sort.SliceStable(timed, func(i, j int) bool { return timed[i].when.Before(timed[j].when) })

	out := plain
	for _, c := range timed {
		out = append(out, c.label)
	}
	return out
}

// chronological interprets a column label as a point in time: a bare
// integer is a year, otherwise any supported date/datetime layout.
func chronological(label string) (time.Time, bool) {
	if y, err := strconv.Atoi(label); err == nil {
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC), true
	}
	return coerce.ParseDatetime(label)
}
