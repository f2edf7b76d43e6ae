package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nlquery/dbagent/pkg/llmclient"
	"github.com/nlquery/dbagent/pkg/planner"
)

// analysisPreviewRows bounds how many rows of each referenced step are
// embedded in the secondaryAnalysis prompt (spec.md §4.7
// "secondaryAnalysis: bounded preview up to 20 rows per referenced
// step").
const analysisPreviewRows = 20

// runSecondaryAnalysis feeds a bounded preview of one or more prior
// steps plus free-form instructions to the LLM oracle and returns its
// plain-language reply after llmclient.Sanitize and whitespace
// trimming. It never asks the LLM for structured
// JSON back — the result is prose (spec.md §4.7 "never requesting raw
// JSON back").
func runSecondaryAnalysis(ctx context.Context, oracle llmclient.Oracle, stepIndex int, step planner.PlanStep, prior []StepResult) StepResult {
	start := time.Now()

	if oracle == nil {
		return errStep(stepIndex, planner.KindSecondaryAnalysis, start, fmt.Errorf("no llm oracle configured for secondary analysis"))
	}

	refs, err := resolveSteps(step.OnSteps, prior)
	if err != nil {
		return errStep(stepIndex, planner.KindSecondaryAnalysis, start, err)
	}

	prompt := buildAnalysisPrompt(step.Instructions, refs)
	reply, err := oracle.Generate(ctx, prompt)
	if err != nil {
		return errStep(stepIndex, planner.KindSecondaryAnalysis, start, fmt.Errorf("secondary analysis call: %w", err))
	}

	text := strings.TrimSpace(llmclient.Sanitize(reply))
	return StepResult{
		StepIndex: stepIndex, Kind: planner.KindSecondaryAnalysis, Status: StatusOk,
		Output: text, DurationMillis: durationMillis(start),
	}
}

func resolveSteps(onSteps []int, prior []StepResult) ([]StepResult, error) {
	if len(onSteps) == 0 {
		return nil, fmt.Errorf("secondaryAnalysis requires at least one onSteps reference")
	}
	refs := make([]StepResult, 0, len(onSteps))
	for _, n := range onSteps {
		ref, err := resolveStep(n, prior)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func buildAnalysisPrompt(instructions string, refs []StepResult) string {
	var b strings.Builder
	b.WriteString("You are analyzing database query results for a non-technical user. ")
	b.WriteString("Respond in plain language, no JSON, no markdown tables.\n\n")
	b.WriteString("Instructions: ")
	b.WriteString(instructions)
	b.WriteString("\n\n")

	for _, ref := range refs {
		rows := ref.Rows
		if len(rows) > analysisPreviewRows {
			rows = rows[:analysisPreviewRows]
		}
		encoded, _ := json.Marshal(rows)
		fmt.Fprintf(&b, "Step %d (%s) preview (%d of %d total rows): %s\n", ref.StepIndex, ref.Kind, len(rows), ref.TotalCount, encoded)
	}
	return b.String()
}
