package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"github.com/nlquery/dbagent/pkg/llmclient"
	"github.com/nlquery/dbagent/pkg/safety"
)

// llmQueryShape is the strict JSON contract the LLM oracle must follow
// when synthesizing an ExecutedQuery candidate (spec.md §4.7
// "synthesize an ExecutedQuery via the LLM (prompted with schema,
// memory context, safety rules)").
type llmQueryShape struct {
	Operation  string           `json:"operation"`
	Collection string           `json:"collection,omitempty"`
	Filter     map[string]any   `json:"filter,omitempty"`
	Projection map[string]any   `json:"projection,omitempty"`
	Sort       map[string]any   `json:"sort,omitempty"`
	Limit      *int64           `json:"limit,omitempty"`
	Pipeline   []map[string]any `json:"pipeline,omitempty"`
	Document   map[string]any   `json:"document,omitempty"`
	Update     map[string]any   `json:"update,omitempty"`
	SQL        string           `json:"sql,omitempty"`
	Parameters []any            `json:"parameters,omitempty"`
}

// llmSynthesize prompts the oracle for a single ExecutedQuery
// candidate and parses the strict JSON reply. Returns an error if the
// oracle is unavailable or the reply doesn't parse — the caller falls
// back to the heuristic synthesizer.
func llmSynthesize(ctx context.Context, oracle llmclient.Oracle, kind dbendpoint.Kind, subQuery, schemaJSON, memoryInsights string) (llmQueryShape, error) {
	if oracle == nil {
		return llmQueryShape{}, fmt.Errorf("no llm oracle configured")
	}

	raw, err := oracle.Generate(ctx, buildSynthesisPrompt(kind, subQuery, schemaJSON, memoryInsights))
	if err != nil {
		return llmQueryShape{}, fmt.Errorf("llm synthesis call: %w", err)
	}

	cleaned := llmclient.Sanitize(raw)
	var shape llmQueryShape
	if err := json.Unmarshal([]byte(cleaned), &shape); err != nil {
		return llmQueryShape{}, fmt.Errorf("parse llm query shape: %w", err)
	}
	return shape, nil
}

func buildSynthesisPrompt(kind dbendpoint.Kind, subQuery, schemaJSON, memoryInsights string) string {
	contract := `{"operation":"find|findOne|count|aggregate|insertOne|updateOne|deleteOne","collection":"...","filter":{},"projection":{},"sort":{},"limit":0,"pipeline":[],"document":{},"update":{}}`
	if kind != dbendpoint.KindDocument {
		contract = `{"sql":"SELECT ...","parameters":[]}`
	}
	return fmt.Sprintf(
		"You are a database query synthesizer. Respond with ONLY a JSON object of the form %s. "+
			"Never use DROP, TRUNCATE, or ALTER. UPDATE/DELETE must carry a WHERE/filter. "+
			"No prose, no markdown fences.\n\nSchema: %s\nMemory insights: %s\nRequest: %s\n",
		contract, schemaJSON, memoryInsights, subQuery,
	)
}

func (s llmQueryShape) toDocumentQuery(collection string) safety.DocumentQuery {
	coll := s.Collection
	if coll == "" {
		coll = collection
	}
	return safety.DocumentQuery{
		Operation:  safety.Operation(s.Operation),
		Collection: coll,
		Filter:     s.Filter,
		Projection: s.Projection,
		Sort:       s.Sort,
		Limit:      s.Limit,
		Pipeline:   s.Pipeline,
		Document:   s.Document,
		Update:     s.Update,
	}
}

func (s llmQueryShape) toRelationalQuery() safety.RelationalQuery {
	return safety.RelationalQuery{SQL: s.SQL, Parameters: s.Parameters}
}
