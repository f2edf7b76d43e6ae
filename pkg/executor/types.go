// Package executor implements the Executor (spec.md §4.7): runs each
// PlanStep through its handler, recording an explicit Ok|Err result
// per step (spec.md §9 "Throw-based control flow ... recast per-step
// errors into an explicit result variant") so a single step's failure
// never aborts the request.
package executor

import (
	"time"

	"github.com/nlquery/dbagent/pkg/planner"
)

// Status is the outcome of a single step (spec.md §9 "Ok(stepOutput) |
// Err(reason)").
type Status string

const (
	StatusOk  Status = "ok"
	StatusErr Status = "error"
)

// ExecutedQueryTrace is the verbose-mode description of a dbQuery
// step's ExecutedQuery (spec.md §4.9 "executedQueries").
type ExecutedQueryTrace struct {
	Operation   string         `json:"operation"`
	Collection  string         `json:"collection,omitempty"`
	Filter      map[string]any `json:"filter,omitempty"`
	SQL         string         `json:"sql,omitempty"`
	Description string         `json:"description"`
}

// StepResult is recorded for every PlanStep, success or failure
// (spec.md §4.7 "A step's failure is recorded as {stepIndex, kind:
// error, output: reason}").
type StepResult struct {
	StepIndex int              `json:"stepIndex"`
	Kind      planner.StepKind `json:"kind"`
	Status    Status           `json:"status"`
	Output    string           `json:"output"`
	// Rows is the full, row-cap-bounded result set: the source for
	// response Data and computeStats (spec.md §4.7, §5). It is never
	// truncated further for display purposes.
	Rows []map[string]any `json:"rows,omitempty"`
	// PreviewRows is a small, separately-sized slice of Rows used only
	// when assembling verbose trace output — it never feeds Data,
	// computeStats or secondaryAnalysis (spec.md §4.7 "Capture rows
	// (preview up to 10 for trace)").
	PreviewRows    []map[string]any   `json:"-"`
	TotalCount     int64               `json:"totalCount,omitempty"`
	ExecutedQuery  *ExecutedQueryTrace `json:"executedQuery,omitempty"`
	DurationMillis int64               `json:"executionMillis"`
}

// durationMillis is a small helper used by every step handler.
func durationMillis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
