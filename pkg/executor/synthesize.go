package executor

import (
	"fmt"
	"strings"

	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"github.com/nlquery/dbagent/pkg/safety"
)

// synthesisContext is everything the heuristic synthesizer needs:
// the target kind, the subquery text, and the keyword-matched
// candidate tables/collections in priority order (spec.md §4.7).
type synthesisContext struct {
	Kind       dbendpoint.Kind
	SubQuery   string
	Candidates []string
}

// heuristicSynthesizeDocument produces a pre-gate DocumentQuery by
// detecting intent keywords in subQuery (spec.md §4.7 "detect intent
// keywords count/how many, latest/recent, top/first, match candidate
// collection/table").
func heuristicSynthesizeDocument(ctx synthesisContext) (safety.DocumentQuery, string, error) {
	collection, err := pickCandidate(ctx.Candidates)
	if err != nil {
		return safety.DocumentQuery{}, "", err
	}

	text := strings.ToLower(ctx.SubQuery)
	q := safety.DocumentQuery{Collection: collection, Filter: map[string]any{}}

	switch {
	case containsAny(text, "how many", "count"):
		q.Operation = safety.OpCount
		return q, fmt.Sprintf("count documents in %s", collection), nil
	case containsAny(text, "latest", "recent"):
		q.Operation = safety.OpFind
		q.Sort = map[string]any{"createdAt": -1}
		return q, fmt.Sprintf("most recent documents in %s", collection), nil
	case containsAny(text, "top", "first"):
		q.Operation = safety.OpFind
		return q, fmt.Sprintf("first documents in %s", collection), nil
	default:
		q.Operation = safety.OpFind
		return q, fmt.Sprintf("documents in %s", collection), nil
	}
}

// heuristicSynthesizeRelational produces a pre-gate RelationalQuery
// using the same intent keywords, targeted at the relational dialect
// implied by ctx.Kind.
func heuristicSynthesizeRelational(ctx synthesisContext) (safety.RelationalQuery, string, error) {
	table, err := pickCandidate(ctx.Candidates)
	if err != nil {
		return safety.RelationalQuery{}, "", err
	}

	text := strings.ToLower(ctx.SubQuery)
	switch {
	case containsAny(text, "how many", "count"):
		return safety.RelationalQuery{SQL: fmt.Sprintf("SELECT count(*) FROM %s", table)},
			fmt.Sprintf("count rows in %s", table), nil
	case containsAny(text, "latest", "recent"):
		return safety.RelationalQuery{SQL: fmt.Sprintf("SELECT * FROM %s ORDER BY created_at DESC", table)},
			fmt.Sprintf("most recent rows in %s", table), nil
	default:
		return safety.RelationalQuery{SQL: fmt.Sprintf("SELECT * FROM %s", table)},
			fmt.Sprintf("rows in %s", table), nil
	}
}

func pickCandidate(candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no candidate table/collection to query")
	}
	return candidates[0], nil
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
