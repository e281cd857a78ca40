// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences fetch units through the extraction stages and
// aggregates their tables. One bad unit never aborts a batch; a batch where
// every unit fails is itself a failure.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/davidrpo/macrofetch/pkg/types"
)

// Status tracks a unit's progress through the pipeline.
type Status string

const (
	StatusPending  Status = "pending"
	StatusFetched  Status = "fetched"
	StatusParsed   Status = "parsed"
	StatusIncluded Status = "included"
	StatusFailed   Status = "failed"
)

// Output is one named table produced by a unit. Units may produce more
// than one (a study yields both a study-level and a variable-level table).
type Output struct {
	Name  string
	Table *types.Table
}

// Unit is the smallest retrievable entity: a study, a dataset page, a flow
// file. Fetch retrieves the raw payload; Parse turns it into tables.
type Unit struct {
	ID     string
	Fetch  func(ctx context.Context) (any, error)
	Parse  func(raw any) ([]Output, error)
	status Status
}

// Status returns the unit's terminal state after a run.
func (u *Unit) Status() Status {
	if u.status == "" {
		return StatusPending
	}
	return u.status
}

// Batch aggregates the per-name merged tables of a run plus the units that
// failed.
type Batch struct {
	names  []string
	tables map[string]*types.Table
	Errors []types.UnitError
}

// Table returns the merged table for name, or nil.
func (b *Batch) Table(name string) *types.Table {
	return b.tables[name]
}

// Names lists the produced table names in first-seen order.
func (b *Batch) Names() []string { return b.names }

// Run processes units strictly sequentially: each is fully fetched and
// parsed before the next begins, and its tables are merged into the
// per-name aggregates. A unit error is logged with the unit's identity,
// recorded, and the batch moves on. Run returns an error only when no unit
// succeeded, naming every attempted identifier so the caller can retry
// manually.
func Run(ctx context.Context, units []*Unit, log zerolog.Logger) (*Batch, error) {
	if len(units) == 0 {
		return nil, fmt.Errorf("no fetch units resolved: nothing to process")
	}

	batch := &Batch{tables: make(map[string]*types.Table)}
	included := 0

	for _, u := range units {
		u.status = StatusPending
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := u.Fetch(ctx)
		if err != nil {
			u.status = StatusFailed
			log.Error().Str("unit", u.ID).Err(err).Msg("unit fetch failed, continuing batch")
			batch.Errors = append(batch.Errors, types.UnitError{UnitID: u.ID, Err: err})
			continue
		}
		u.status = StatusFetched

		outputs, err := u.Parse(raw)
		if err != nil {
			u.status = StatusFailed
			log.Error().Str("unit", u.ID).Err(err).Msg("unit parse failed, continuing batch")
			batch.Errors = append(batch.Errors, types.UnitError{UnitID: u.ID, Err: err})
			continue
		}
		u.status = StatusParsed

		for _, out := range outputs {
			if existing, ok := batch.tables[out.Name]; ok {
				batch.tables[out.Name] = existing.Append(out.Table)
			} else {
				batch.tables[out.Name] = out.Table
				batch.names = append(batch.names, out.Name)
			}
		}
		u.status = StatusIncluded
		included++
	}

	if included == 0 {
		ids := make([]string, len(units))
		for i, u := range units {
			ids[i] = u.ID
		}
		return nil, fmt.Errorf("all %d unit(s) failed (attempted: %s): last error: %w",
			len(units), strings.Join(ids, ", "), batch.Errors[len(batch.Errors)-1].Err)
	}
	return batch, nil
}
