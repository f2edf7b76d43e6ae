package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nlquery/dbagent/pkg/llmclient"
)

// Planner produces Plans from a Request (spec.md §4.6).
type Planner struct {
	oracle llmclient.Oracle
}

// New constructs a Planner. oracle may be nil, in which case every
// call falls back to the heuristic planner (spec.md §4.6 "If ... the
// LLM is unavailable, a deterministic heuristic planner produces a
// single-step dbQuery").
func New(oracle llmclient.Oracle) *Planner {
	return &Planner{oracle: oracle}
}

// Plan synthesizes a Plan for req. The conversational short-circuit
// (spec.md §4.6) is the caller's responsibility via IsConversational;
// Plan itself always attempts the LLM oracle (when present) before
// falling back to the heuristic.
func (p *Planner) Plan(ctx context.Context, req Request) Plan {
	if p.oracle == nil {
		return heuristicPlan(req)
	}

	raw, err := p.oracle.Generate(ctx, buildPrompt(req))
	if err != nil {
		return heuristicPlan(req)
	}

	plan, err := parsePlan(raw)
	if err != nil {
		return heuristicPlan(req)
	}
	return plan
}

// parsePlan sanitizes and JSON-decodes the oracle's raw reply into a
// Plan, validating step shapes (spec.md §4.6 "Output is sanitized ...
// and JSON-parsed").
func parsePlan(raw string) (Plan, error) {
	cleaned := llmclient.Sanitize(raw)

	var plan Plan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		// The oracle may have replied with a bare steps array rather
		// than {"steps": [...]}.
		var steps []PlanStep
		if err2 := json.Unmarshal([]byte(cleaned), &steps); err2 != nil {
			return Plan{}, fmt.Errorf("parse plan json: %w", err)
		}
		plan = Plan{Steps: steps}
	}

	for i, step := range plan.Steps {
		if !validKind(step.Kind) {
			return Plan{}, fmt.Errorf("plan step %d has unrecognized kind %q", i, step.Kind)
		}
	}
	return plan, nil
}

func validKind(k StepKind) bool {
	return k == KindDBQuery || k == KindComputeStats || k == KindSecondaryAnalysis
}

// heuristicPlan produces the deterministic single-step fallback plan
// (spec.md §4.6): one dbQuery step whose subQuery is the original
// text. Short plans are preferred, so this is always exactly one step.
func heuristicPlan(req Request) Plan {
	return Plan{Steps: []PlanStep{
		{Kind: KindDBQuery, SubQuery: req.UserText, Rationale: "heuristic fallback: LLM unavailable or output unparseable"},
	}}
}

// buildPrompt assembles the strict-JSON-contract prompt sent to the
// oracle (spec.md §4.6).
func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a query planner. Respond with ONLY a JSON object of the form ")
	b.WriteString(`{"steps":[{"kind":"dbQuery","subQuery":"..."},{"kind":"computeStats","onStep":1,"ops":[{"op":"count"}]},{"kind":"secondaryAnalysis","onSteps":[1],"instructions":"..."}]}`)
	b.WriteString(". Prefer the shortest plan that answers the request. No prose, no markdown fences.\n\n")
	fmt.Fprintf(&b, "Database kind: %s\n", req.Kind)
	fmt.Fprintf(&b, "Schema: %s\n", req.SchemaJSON)
	fmt.Fprintf(&b, "Capabilities: %s\n", req.CapabilitiesString)
	fmt.Fprintf(&b, "Candidate tables/collections: %s\n", strings.Join(req.KeywordCandidates, ", "))
	fmt.Fprintf(&b, "Memory insights: %s\n", req.MemoryInsights)
	fmt.Fprintf(&b, "User request: %s\n", req.UserText)
	return b.String()
}
