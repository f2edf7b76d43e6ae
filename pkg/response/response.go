// Package response implements the Response Shaper (spec.md §4.9):
// assembles the minimal or verbose reply shape and produces the final
// natural-language summary, falling back to a deterministic message
// when no LLM oracle is available.
package response

import (
	"context"
	"fmt"
	"strings"

	"github.com/nlquery/dbagent/pkg/executor"
	"github.com/nlquery/dbagent/pkg/llmclient"
	"github.com/nlquery/dbagent/pkg/memorystore"
	"github.com/nlquery/dbagent/pkg/planner"
)

// Response is the reply shape surfaced to callers (spec.md §4.9, §6).
type Response struct {
	Data    []map[string]any `json:"data,omitempty"`
	Message string            `json:"message"`
	Success bool              `json:"success"`

	// Verbose-only fields.
	Plan            *planner.Plan               `json:"plan,omitempty"`
	Trace           []TracePreview              `json:"trace,omitempty"`
	ExecutedQueries []ExecutedQueryDescription  `json:"executedQueries,omitempty"`
	MemoryInsights  *memorystore.Insights       `json:"memoryInsights,omitempty"`
	Suggestions     []string                    `json:"suggestions,omitempty"`
	ExecutionMillis int64                       `json:"executionMillis,omitempty"`
	Query           string                      `json:"query,omitempty"`
}

// TracePreview is one step's verbose-mode preview (spec.md §4.9
// "trace (per-step preview outputs)").
type TracePreview struct {
	StepIndex int              `json:"stepIndex"`
	Kind      planner.StepKind `json:"kind"`
	Status    executor.Status  `json:"status"`
	Output    string           `json:"output"`
	Rows      []map[string]any `json:"rows,omitempty"`
}

// ExecutedQueryDescription is one step's verbose-mode executedQueries
// entry (spec.md §4.9 "operation kind + description + collection/sql
// + filter; SQL redacted if configured").
type ExecutedQueryDescription struct {
	Operation   string         `json:"operation"`
	Description string         `json:"description"`
	Collection  string         `json:"collection,omitempty"`
	SQL         string         `json:"sql,omitempty"`
	Filter      map[string]any `json:"filter,omitempty"`
}

// Request bundles everything the Shaper needs to build a Response.
type Request struct {
	Verbose         bool
	DryRun          bool
	Query           string
	Plan            planner.Plan
	Steps           []executor.StepResult
	MemoryInsights  memorystore.Insights
	Suggestions     []string
	ExecutionMillis int64
}

// Shaper assembles Responses, optionally using an LLM oracle to
// compose the natural-language summary (spec.md §4.9 "message is
// produced by asking the LLM to summarize").
type Shaper struct {
	oracle llmclient.Oracle
}

// New builds a Shaper. oracle may be nil; the fallback summary is
// used in that case.
func New(oracle llmclient.Oracle) *Shaper {
	return &Shaper{oracle: oracle}
}

// Shape assembles req into a Response.
func (s *Shaper) Shape(ctx context.Context, req Request) Response {
	final, hasFinal := executor.FinalData(req.Steps)

	resp := Response{
		Success: len(req.Steps) == 0 || !anyFailed(req.Steps),
	}
	if hasFinal && final.Status == executor.StatusOk {
		resp.Data = final.Rows
	}
	resp.Message = s.summarize(ctx, req, final, hasFinal)

	if !req.Verbose {
		return resp
	}

	resp.Plan = &req.Plan
	resp.Query = req.Query
	resp.ExecutionMillis = req.ExecutionMillis
	resp.Suggestions = req.Suggestions
	resp.MemoryInsights = &req.MemoryInsights

	for _, step := range req.Steps {
		resp.Trace = append(resp.Trace, TracePreview{
			StepIndex: step.StepIndex, Kind: step.Kind, Status: step.Status, Output: step.Output,
			Rows: step.PreviewRows,
		})
		if step.ExecutedQuery != nil {
			resp.ExecutedQueries = append(resp.ExecutedQueries, ExecutedQueryDescription{
				Operation: step.ExecutedQuery.Operation, Description: step.ExecutedQuery.Description,
				Collection: step.ExecutedQuery.Collection, SQL: step.ExecutedQuery.SQL, Filter: step.ExecutedQuery.Filter,
			})
		}
	}

	return resp
}

func anyFailed(steps []executor.StepResult) bool {
	for _, s := range steps {
		if s.Status == executor.StatusErr {
			return true
		}
	}
	return false
}

// summarize asks the LLM oracle for a natural-language summary; on
// oracle absence or failure it falls back to a deterministic message
// (spec.md §4.9 "the default fallback is 'Retrieved N record(s)' or
// 'Preview generated successfully' for dry-run").
func (s *Shaper) summarize(ctx context.Context, req Request, final executor.StepResult, hasFinal bool) string {
	if s.oracle != nil {
		if text, err := s.oracle.Generate(ctx, buildSummaryPrompt(req)); err == nil {
			if cleaned := strings.TrimSpace(llmclient.Sanitize(text)); cleaned != "" {
				return cleaned
			}
		}
	}
	return fallbackMessage(req, final, hasFinal)
}

func fallbackMessage(req Request, final executor.StepResult, hasFinal bool) string {
	if req.DryRun {
		return "Preview generated successfully"
	}
	if !hasFinal {
		return "Preview generated successfully"
	}
	return fmt.Sprintf("Retrieved %d record(s)", len(final.Rows))
}

func buildSummaryPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Summarize the result of this database query request in one or two plain-language sentences, no JSON.\n\n")
	fmt.Fprintf(&b, "Request: %s\n", req.Query)
	for _, step := range req.Steps {
		if step.ExecutedQuery != nil {
			fmt.Fprintf(&b, "Step %d (%s): %s\n", step.StepIndex, step.Kind, step.ExecutedQuery.Description)
		}
		if step.Status == executor.StatusOk {
			fmt.Fprintf(&b, "  output: %s\n", step.Output)
		}
	}
	return b.String()
}
