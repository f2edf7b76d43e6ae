// Package planner implements the Planner (spec.md §4.6): produces a
// Plan from {userText, schemaJson, memoryInsights, capabilitiesString,
// keywordCandidates, kind} by delegating to the LLM oracle with a
// strict JSON output contract, falling back to a deterministic
// heuristic planner when the oracle is unavailable or its output
// fails to parse.
package planner

// StepKind enumerates PlanStep.kind (spec.md §3).
type StepKind string

const (
	KindDBQuery           StepKind = "dbQuery"
	KindComputeStats      StepKind = "computeStats"
	KindSecondaryAnalysis StepKind = "secondaryAnalysis"
)

// StatOp enumerates computeStats operation kinds (spec.md §3).
type StatOp struct {
	Op    string `json:"op"`              // count, topK, mean, min, max, sum, distinct
	Field string `json:"field,omitempty"` // not used for count
	K     int    `json:"k,omitempty"`     // only for topK
}

// PlanStep is one ordered entry of a Plan (spec.md §3).
type PlanStep struct {
	Kind StepKind `json:"kind"`

	// dbQuery
	SubQuery string `json:"subQuery,omitempty"`

	// computeStats
	OnStep int      `json:"onStep,omitempty"`
	Ops    []StatOp `json:"ops,omitempty"`

	// secondaryAnalysis
	OnSteps      []int  `json:"onSteps,omitempty"`
	Instructions string `json:"instructions,omitempty"`

	// Rationale is a supplemental, human-readable label surfaced in
	// verbose-mode responses through the plan field (not the trace), mirroring the teacher's timeline_event
	// practice of labeling every pipeline action (additive; does not
	// change plan semantics).
	Rationale string `json:"rationale,omitempty"`
}

// Plan is an ordered sequence of PlanStep (spec.md §3). A zero-length
// plan is the conversational short-circuit (spec.md §4.6).
type Plan struct {
	Steps []PlanStep `json:"steps"`
}

// Request bundles everything the Planner needs to synthesize a Plan
// (spec.md §4.6).
type Request struct {
	UserText           string
	SchemaJSON         string
	MemoryInsights     string
	CapabilitiesString string
	KeywordCandidates  []string
	Kind               string
}
