// Package safety implements the Safety Gate (spec.md §4.4): the
// validation/rewriting layer every ExecutedQuery passes through before
// touching a database. Rules are a table of named predicates/rewriters,
// grounded on the teacher's pkg/masking design — compiled-once pattern
// tables, a resolvedPatterns-style aggregation step, fail-closed
// behavior on internal rewrite errors.
package safety

import "time"

// Operation enumerates the document-kind operations the gate
// recognizes (spec.md §3 ExecutedQuery).
type Operation string

const (
	OpFind        Operation = "find"
	OpFindOne     Operation = "findOne"
	OpCount       Operation = "count"
	OpAggregate   Operation = "aggregate"
	OpInsertOne   Operation = "insertOne"
	OpUpdateOne   Operation = "updateOne"
	OpDeleteOne   Operation = "deleteOne"
	OpUpdateMany  Operation = "updateMany"
	OpDeleteMany  Operation = "deleteMany"
)

// writeOps are operations that mutate document storage.
var writeOps = map[Operation]bool{
	OpInsertOne: true, OpUpdateOne: true, OpDeleteOne: true,
	OpUpdateMany: true, OpDeleteMany: true,
}

// bulkOps are write variants the gate never permits (spec.md §4.4
// "Bulk variants (updateMany/deleteMany) are not permitted").
var bulkOps = map[Operation]bool{
	OpUpdateMany: true, OpDeleteMany: true,
}

// DocumentQuery is the pre-gate document-kind ExecutedQuery candidate
// (spec.md §3), as synthesized by the planner/executor before the gate
// validates and rewrites it.
type DocumentQuery struct {
	Operation  Operation
	Collection string
	Filter     map[string]any
	Projection map[string]any
	Sort       map[string]any
	Limit      *int64
	Pipeline   []map[string]any
	Document   map[string]any
	Update     map[string]any
}

// RelationalQuery is the pre-gate relational-kind ExecutedQuery
// candidate (spec.md §3): {sql, parameters[]}.
type RelationalQuery struct {
	SQL        string
	Parameters []any
}

// Verdict carries the gate's decision: Allowed indicates the query (in
// its possibly-rewritten form) is safe to execute.
type Verdict struct {
	Allowed       bool
	Document      *DocumentQuery
	Relational    *RelationalQuery
	Redacted      bool
	StatementTime time.Duration
}

// RejectedError is returned by the gate on rule violation (spec.md
// §4.4 "SafetyRejected(rule)").
type RejectedError struct {
	Rule   string
	Detail string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return "safety gate rejected: " + e.Rule
	}
	return "safety gate rejected: " + e.Rule + ": " + e.Detail
}

func rejected(rule, detail string) error {
	return &RejectedError{Rule: rule, Detail: detail}
}
