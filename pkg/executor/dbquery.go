package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"github.com/nlquery/dbagent/pkg/planner"
	"github.com/nlquery/dbagent/pkg/safety"
)

// previewRowCount bounds StepResult.PreviewRows, the slice used only
// when assembling verbose trace output — distinct from the full,
// row-cap-bounded StepResult.Rows that feeds Data/computeStats
// (spec.md §4.7 "Capture rows (preview up to 10 for trace)").
const previewRowCount = 10

// dbQueryParams bundles everything runDBQuery needs beyond the step
// itself.
type dbQueryParams struct {
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

// runDBQuery synthesizes, gates, and (unless dry-run) executes one
// dbQuery step (spec.md §4.7).
func (e *Executor) runDBQuery(ctx context.Context, stepIndex int, subQuery string, p dbQueryParams) StepResult {
	start := time.Now()

	if p.Kind == dbendpoint.KindDocument {
		return e.runDocumentDBQuery(ctx, stepIndex, subQuery, p, start)
	}
	return e.runRelationalDBQuery(ctx, stepIndex, subQuery, p, start)
}

func (e *Executor) runDocumentDBQuery(ctx context.Context, stepIndex int, subQuery string, p dbQueryParams, start time.Time) StepResult {
	synCtx := synthesisContext{Kind: p.Kind, SubQuery: subQuery, Candidates: p.Candidates}

	var candidate safety.DocumentQuery
	var description string

	if shape, err := llmSynthesize(ctx, e.oracle, p.Kind, subQuery, p.SchemaJSON, p.MemoryInsights); err == nil {
		collection := ""
		if len(p.Candidates) > 0 {
			collection = p.Candidates[0]
		}
		candidate = shape.toDocumentQuery(collection)
		description = fmt.Sprintf("llm-synthesized %s on %s", candidate.Operation, candidate.Collection)
	} else {
		candidate, description, err = heuristicSynthesizeDocument(synCtx)
		if err != nil {
			return errStep(stepIndex, planner.KindDBQuery, start, err)
		}
	}

	verdict, err := safety.EvaluateDocument(candidate, p.DocumentGateCfg)
	if err != nil {
		return errStep(stepIndex, planner.KindDBQuery, start, err)
	}

	trace := &ExecutedQueryTrace{
		Operation: string(verdict.Document.Operation), Collection: verdict.Document.Collection,
		Filter: verdict.Document.Filter, Description: description,
	}

	if p.DryRun {
		return StepResult{StepIndex: stepIndex, Kind: planner.KindDBQuery, Status: StatusOk, Output: description, ExecutedQuery: trace, DurationMillis: durationMillis(start)}
	}

	rows, total, err := p.DocumentRunner.Run(ctx, *verdict.Document)
	if err != nil {
		return errStep(stepIndex, planner.KindDBQuery, start, err)
	}

	return StepResult{
		StepIndex: stepIndex, Kind: planner.KindDBQuery, Status: StatusOk, Output: description,
		Rows: rows, PreviewRows: boundRows(rows, previewRowCount), TotalCount: total, ExecutedQuery: trace,
		DurationMillis: durationMillis(start),
	}
}

func (e *Executor) runRelationalDBQuery(ctx context.Context, stepIndex int, subQuery string, p dbQueryParams, start time.Time) StepResult {
	synCtx := synthesisContext{Kind: p.Kind, SubQuery: subQuery, Candidates: p.Candidates}

	var candidate safety.RelationalQuery
	var description string

	if shape, err := llmSynthesize(ctx, e.oracle, p.Kind, subQuery, p.SchemaJSON, p.MemoryInsights); err == nil {
		candidate = shape.toRelationalQuery()
		description = "llm-synthesized sql"
	} else {
		candidate, description, err = heuristicSynthesizeRelational(synCtx)
		if err != nil {
			return errStep(stepIndex, planner.KindDBQuery, start, err)
		}
	}

	verdict, err := safety.EvaluateRelational(candidate, p.RelationalGateCfg)
	if err != nil {
		return errStep(stepIndex, planner.KindDBQuery, start, err)
	}

	trace := &ExecutedQueryTrace{
		Operation: "sql", SQL: safety.RedactedSQL(*verdict.Relational, verdict.Redacted), Description: description,
	}

	if p.DryRun {
		return StepResult{StepIndex: stepIndex, Kind: planner.KindDBQuery, Status: StatusOk, Output: description, ExecutedQuery: trace, DurationMillis: durationMillis(start)}
	}

	rows, total, err := p.RelationalRunner.Run(ctx, *verdict.Relational)
	if err != nil {
		return errStep(stepIndex, planner.KindDBQuery, start, err)
	}

	return StepResult{
		StepIndex: stepIndex, Kind: planner.KindDBQuery, Status: StatusOk, Output: description,
		Rows: rows, PreviewRows: boundRows(rows, previewRowCount), TotalCount: total, ExecutedQuery: trace,
		DurationMillis: durationMillis(start),
	}
}

func boundRows(rows []map[string]any, max int) []map[string]any {
	if len(rows) <= max {
		return rows
	}
	return rows[:max]
}

func errStep(stepIndex int, kind planner.StepKind, start time.Time, err error) StepResult {
	return StepResult{
		StepIndex: stepIndex, Kind: kind, Status: StatusErr,
		Output: err.Error(), DurationMillis: durationMillis(start),
	}
}
