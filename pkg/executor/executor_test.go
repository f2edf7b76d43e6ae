package executor

import (
	"context"
	"testing"

	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"github.com/nlquery/dbagent/pkg/planner"
	"github.com/nlquery/dbagent/pkg/safety"
)

type fakeOracle struct {
	reply string
	err   error
}

func (f fakeOracle) Generate(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeDocRunner struct {
	rows  []map[string]any
	total int64
	err   error
}

func (f fakeDocRunner) Run(ctx context.Context, q safety.DocumentQuery) ([]map[string]any, int64, error) {
	return f.rows, f.total, f.err
}

type fakeSQLRunner struct {
	rows  []map[string]any
	total int64
	err   error
}

func (f fakeSQLRunner) Run(ctx context.Context, q safety.RelationalQuery) ([]map[string]any, int64, error) {
	return f.rows, f.total, f.err
}

func baseConfig() RunConfig {
	return RunConfig{
		Kind:            dbendpoint.KindDocument,
		Candidates:      []string{"orders"},
		DocumentGateCfg: safety.DocumentGateConfig{DefaultRowCap: 50},
		DocumentRunner: fakeDocRunner{
			rows: []map[string]any{
				{"amount": 10.0}, {"amount": 20.0}, {"amount": 30.0},
			},
			total: 3,
		},
	}
}

func TestRunDBQueryHeuristicFallbackWhenNoOracle(t *testing.T) {
	exec := New(nil)
	plan := planner.Plan{Steps: []planner.PlanStep{{Kind: planner.KindDBQuery, SubQuery: "how many orders"}}}

	results := exec.Run(context.Background(), plan, baseConfig())
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Status != StatusOk {
		t.Fatalf("expected ok status, got %v: %s", results[0].Status, results[0].Output)
	}
	if results[0].ExecutedQuery == nil || results[0].ExecutedQuery.Operation != "count" {
		t.Fatalf("expected heuristic count operation, got %+v", results[0].ExecutedQuery)
	}
}

func TestRunDBQueryFailureDoesNotAbortSubsequentSteps(t *testing.T) {
	exec := New(nil)
	cfg := baseConfig()
	cfg.Candidates = nil // forces pickCandidate to error

	plan := planner.Plan{Steps: []planner.PlanStep{
		{Kind: planner.KindDBQuery, SubQuery: "show orders"},
		{Kind: planner.KindComputeStats, OnStep: 1, Ops: []planner.StatOp{{Op: "count"}}},
	}}

	results := exec.Run(context.Background(), plan, cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusErr {
		t.Fatalf("expected first step to fail, got %v", results[0].Status)
	}
	if results[1].Status != StatusErr {
		t.Fatalf("expected second step to fail referencing failed step, got %v", results[1].Status)
	}
}

func TestRunDBQueryKeepsFullRowsAndBoundsPreviewSeparately(t *testing.T) {
	exec := New(nil)
	rows := make([]map[string]any, 15)
	for i := range rows {
		rows[i] = map[string]any{"amount": float64(i)}
	}
	cfg := baseConfig()
	cfg.DocumentGateCfg.DefaultRowCap = 50
	cfg.DocumentRunner = fakeDocRunner{rows: rows, total: 15}

	plan := planner.Plan{Steps: []planner.PlanStep{{Kind: planner.KindDBQuery, SubQuery: "show orders"}}}
	results := exec.Run(context.Background(), plan, cfg)

	if len(results[0].Rows) != 15 {
		t.Fatalf("expected full row set retained, got %d rows", len(results[0].Rows))
	}
	if len(results[0].PreviewRows) != previewRowCount {
		t.Fatalf("expected preview bounded to %d, got %d", previewRowCount, len(results[0].PreviewRows))
	}
}

func TestRunComputeStatsAggregatesPriorStepRows(t *testing.T) {
	exec := New(nil)
	plan := planner.Plan{Steps: []planner.PlanStep{
		{Kind: planner.KindDBQuery, SubQuery: "show orders"},
		{Kind: planner.KindComputeStats, OnStep: 1, Ops: []planner.StatOp{
			{Op: "sum", Field: "amount"},
			{Op: "count"},
		}},
	}}

	results := exec.Run(context.Background(), plan, baseConfig())
	stats := results[1]
	if stats.Status != StatusOk {
		t.Fatalf("expected computeStats to succeed, got %s", stats.Output)
	}
}

func TestRunSecondaryAnalysisUsesOracleReplyVerbatim(t *testing.T) {
	exec := New(fakeOracle{reply: "Orders are trending upward."})
	plan := planner.Plan{Steps: []planner.PlanStep{
		{Kind: planner.KindDBQuery, SubQuery: "show orders"},
		{Kind: planner.KindSecondaryAnalysis, OnSteps: []int{1}, Instructions: "summarize the trend"},
	}}

	results := exec.Run(context.Background(), plan, baseConfig())
	analysis := results[1]
	if analysis.Status != StatusOk {
		t.Fatalf("expected secondaryAnalysis to succeed, got %s", analysis.Output)
	}
	if analysis.Output != "Orders are trending upward." {
		t.Fatalf("unexpected analysis output: %q", analysis.Output)
	}
}

func TestRunSecondaryAnalysisFailsWithoutOracle(t *testing.T) {
	exec := New(nil)
	plan := planner.Plan{Steps: []planner.PlanStep{
		{Kind: planner.KindDBQuery, SubQuery: "show orders"},
		{Kind: planner.KindSecondaryAnalysis, OnSteps: []int{1}, Instructions: "summarize"},
	}}

	results := exec.Run(context.Background(), plan, baseConfig())
	if results[1].Status != StatusErr {
		t.Fatalf("expected secondaryAnalysis to fail without oracle, got %v", results[1].Status)
	}
}

func TestFinalDataPrefersLastSuccessfulDBQuery(t *testing.T) {
	results := []StepResult{
		{StepIndex: 1, Kind: planner.KindDBQuery, Status: StatusOk, Rows: []map[string]any{{"a": 1}}},
		{StepIndex: 2, Kind: planner.KindComputeStats, Status: StatusOk, Output: "stats"},
	}
	final, ok := FinalData(results)
	if !ok || final.StepIndex != 1 {
		t.Fatalf("expected final data to be step 1, got %+v", final)
	}
}

func TestFinalDataFallsBackToLastStepWhenNoDBQuery(t *testing.T) {
	results := []StepResult{
		{StepIndex: 1, Kind: planner.KindSecondaryAnalysis, Status: StatusOk, Output: "summary"},
	}
	final, ok := FinalData(results)
	if !ok || final.Output != "summary" {
		t.Fatalf("expected fallback to last step, got %+v", final)
	}
}

func TestRunDryRunSkipsExecutionButPopulatesTrace(t *testing.T) {
	exec := New(nil)
	cfg := baseConfig()
	cfg.DryRun = true
	cfg.DocumentRunner = fakeDocRunner{err: context.Canceled} // would fail if actually invoked

	plan := planner.Plan{Steps: []planner.PlanStep{{Kind: planner.KindDBQuery, SubQuery: "how many orders"}}}
	results := exec.Run(context.Background(), plan, cfg)
	if results[0].Status != StatusOk {
		t.Fatalf("expected dry-run step to succeed, got %s", results[0].Output)
	}
	if results[0].ExecutedQuery == nil {
		t.Fatalf("expected dry-run to populate executed query trace")
	}
	if results[0].Rows != nil {
		t.Fatalf("expected dry-run to skip row population, got %v", results[0].Rows)
	}
}
