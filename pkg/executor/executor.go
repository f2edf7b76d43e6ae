package executor

import (
	"context"
	"fmt"

	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"github.com/nlquery/dbagent/pkg/llmclient"
	"github.com/nlquery/dbagent/pkg/planner"
	"github.com/nlquery/dbagent/pkg/safety"
)

// Executor runs a Plan step by step, recording an explicit StepResult
// for every step regardless of outcome (spec.md §4.7).
type Executor struct {
	oracle llmclient.Oracle
}

// New builds an Executor. oracle may be nil, in which case dbQuery
// steps fall back to heuristic synthesis and secondaryAnalysis steps
// fail with an explicit StatusErr rather than panicking.
func New(oracle llmclient.Oracle) *Executor {
	return &Executor{oracle: oracle}
}

// RunConfig bundles the per-request context an Executor needs beyond
// the Plan itself, wired in by pkg/pipeline.
type RunConfig struct {
	Kind              dbendpoint.Kind
	Candidates        []string
	SchemaJSON        string
	MemoryInsights    string
	DryRun            bool
	DocumentGateCfg   safety.DocumentGateConfig
	RelationalGateCfg safety.RelationalGateConfig
	DocumentRunner    DocumentRunner
	RelationalRunner  RelationalRunner
}

// Run executes every step of plan in order. A step's failure is
// captured in its own StepResult and never aborts subsequent steps
// (spec.md §4.7 "A step's failure is recorded ... and subsequent
// steps proceed").
func (e *Executor) Run(ctx context.Context, plan planner.Plan, cfg RunConfig) []StepResult {
	results := make([]StepResult, 0, len(plan.Steps))

	for i, step := range plan.Steps {
		stepIndex := i + 1

		var result StepResult
		switch step.Kind {
		case planner.KindDBQuery:
			result = e.runDBQuery(ctx, stepIndex, step.SubQuery, dbQueryParams{
				Kind:              cfg.Kind,
				Candidates:        cfg.Candidates,
				SchemaJSON:        cfg.SchemaJSON,
				MemoryInsights:    cfg.MemoryInsights,
				DryRun:            cfg.DryRun,
				DocumentGateCfg:   cfg.DocumentGateCfg,
				RelationalGateCfg: cfg.RelationalGateCfg,
				DocumentRunner:    cfg.DocumentRunner,
				RelationalRunner:  cfg.RelationalRunner,
			})
		case planner.KindComputeStats:
			result = runComputeStats(stepIndex, step, results)
		case planner.KindSecondaryAnalysis:
			result = runSecondaryAnalysis(ctx, e.oracle, stepIndex, step, results)
		default:
			result = StepResult{StepIndex: stepIndex, Kind: step.Kind, Status: StatusErr, Output: fmt.Sprintf("unknown step kind %q", step.Kind)}
		}

		results = append(results, result)
	}

	return results
}

// FinalData picks the data to surface to the Response Shaper: the
// last successful dbQuery step's rows if any ran, otherwise the last
// step's output (spec.md §4.7 "final-data-selection").
func FinalData(results []StepResult) (StepResult, bool) {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Kind == planner.KindDBQuery && results[i].Status == StatusOk {
			return results[i], true
		}
	}
	if len(results) == 0 {
		return StepResult{}, false
	}
	return results[len(results)-1], true
}
