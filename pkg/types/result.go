// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// UnitError records one fetch unit that failed without aborting the batch.
type UnitError struct {
	UnitID string
	Err    error
}

// Error implements the error interface.
func (e UnitError) Error() string {
	return fmt.Sprintf("unit %s: %v", e.UnitID, e.Err)
}

// Unwrap exposes the underlying cause.
func (e UnitError) Unwrap() error { return e.Err }

// PipelineResult aggregates one run's output: the long (tidy) table, the
// wide (pivoted) table where the source produces one, and the units that
// failed along the way.
type PipelineResult struct {
	Long   *Table
	Wide   *Table
	Errors []UnitError
}

// Failed reports how many units failed.
func (r PipelineResult) Failed() int { return len(r.Errors) }
