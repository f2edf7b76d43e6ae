package response

import (
	"context"
	"testing"

	"github.com/nlquery/dbagent/pkg/executor"
	"github.com/nlquery/dbagent/pkg/memorystore"
	"github.com/nlquery/dbagent/pkg/planner"
)

func TestShapeMinimalOmitsVerboseFields(t *testing.T) {
	shaper := New(nil)
	steps := []executor.StepResult{
		{StepIndex: 1, Kind: planner.KindDBQuery, Status: executor.StatusOk, Rows: []map[string]any{{"a": 1}, {"a": 2}}},
	}
	resp := shaper.Shape(context.Background(), Request{Verbose: false, Steps: steps})

	if resp.Plan != nil || resp.Trace != nil || resp.ExecutedQueries != nil {
		t.Fatalf("expected minimal response to omit verbose fields, got %+v", resp)
	}
	if resp.Message != "Retrieved 2 record(s)" {
		t.Fatalf("unexpected fallback message: %q", resp.Message)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(resp.Data))
	}
}

func TestShapeVerboseIncludesTraceAndExecutedQueries(t *testing.T) {
	shaper := New(nil)
	steps := []executor.StepResult{
		{
			StepIndex: 1, Kind: planner.KindDBQuery, Status: executor.StatusOk,
			Rows: []map[string]any{{"a": 1}},
			ExecutedQuery: &executor.ExecutedQueryTrace{
				Operation: "find", Collection: "orders", Description: "documents in orders",
			},
		},
	}
	resp := shaper.Shape(context.Background(), Request{
		Verbose: true, Query: "show orders", Steps: steps,
		MemoryInsights: memorystore.Insights{SkillLevel: "beginner"},
	})

	if resp.Plan == nil {
		t.Fatalf("expected verbose response to include plan")
	}
	if len(resp.Trace) != 1 || resp.Trace[0].Output != "" && resp.Trace[0].Status != executor.StatusOk {
		t.Fatalf("unexpected trace: %+v", resp.Trace)
	}
	if len(resp.ExecutedQueries) != 1 || resp.ExecutedQueries[0].Collection != "orders" {
		t.Fatalf("unexpected executed queries: %+v", resp.ExecutedQueries)
	}
	if resp.MemoryInsights == nil || resp.MemoryInsights.SkillLevel != "beginner" {
		t.Fatalf("expected memory insights to be carried through, got %+v", resp.MemoryInsights)
	}
}

func TestShapeTracePreviewUsesBoundedPreviewRowsNotFullRows(t *testing.T) {
	shaper := New(nil)
	full := []map[string]any{{"a": 1}, {"a": 2}, {"a": 3}}
	preview := []map[string]any{{"a": 1}}
	steps := []executor.StepResult{
		{StepIndex: 1, Kind: planner.KindDBQuery, Status: executor.StatusOk, Rows: full, PreviewRows: preview},
	}

	resp := shaper.Shape(context.Background(), Request{Verbose: true, Steps: steps})

	if len(resp.Data) != 3 {
		t.Fatalf("expected Data to carry the full row set, got %d rows", len(resp.Data))
	}
	if len(resp.Trace) != 1 || len(resp.Trace[0].Rows) != 1 {
		t.Fatalf("expected trace preview bounded to the step's PreviewRows, got %+v", resp.Trace)
	}
}

func TestShapeMarksFailureWhenStepErrored(t *testing.T) {
	shaper := New(nil)
	steps := []executor.StepResult{
		{StepIndex: 1, Kind: planner.KindDBQuery, Status: executor.StatusErr, Output: "safety gate rejected: write_requires_where"},
	}
	resp := shaper.Shape(context.Background(), Request{Steps: steps})

	if resp.Success {
		t.Fatalf("expected Success=false when the only step errored")
	}
	if resp.Data != nil {
		t.Fatalf("expected nil data when the only step errored, got %+v", resp.Data)
	}
}

func TestShapeDryRunFallsBackToPreviewMessage(t *testing.T) {
	shaper := New(nil)
	resp := shaper.Shape(context.Background(), Request{DryRun: true, Steps: nil})
	if resp.Message != "Preview generated successfully" {
		t.Fatalf("expected dry-run fallback message, got %q", resp.Message)
	}
}

type fakeOracle struct {
	reply string
}

func (f fakeOracle) Generate(ctx context.Context, prompt string) (string, error) {
	return f.reply, nil
}

func TestShapeUsesOracleSummaryWhenAvailable(t *testing.T) {
	shaper := New(fakeOracle{reply: "Orders look healthy this week."})
	steps := []executor.StepResult{
		{StepIndex: 1, Kind: planner.KindDBQuery, Status: executor.StatusOk, Rows: []map[string]any{{"a": 1}}},
	}
	resp := shaper.Shape(context.Background(), Request{Steps: steps})
	if resp.Message != "Orders look healthy this week." {
		t.Fatalf("expected oracle summary to be used, got %q", resp.Message)
	}
}
