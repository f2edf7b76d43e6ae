package executor

import (
	"fmt"
	"sort"
	"time"

	"github.com/nlquery/dbagent/pkg/planner"
)

// runComputeStats applies StatOps to the rows captured by an earlier
// dbQuery step, entirely in-process (spec.md §4.7 "computeStats:
// count, topK:field:k, mean/min/max/sum per field, distinct values —
// pure in-process, no DB access").
func runComputeStats(stepIndex int, step planner.PlanStep, prior []StepResult) StepResult {
	start := time.Now()

	source, err := resolveStep(step.OnStep, prior)
	if err != nil {
		return errStep(stepIndex, planner.KindComputeStats, start, err)
	}

	out := map[string]any{}
	for _, op := range step.Ops {
		val, err := applyStatOp(op, source.Rows)
		if err != nil {
			return errStep(stepIndex, planner.KindComputeStats, start, err)
		}
		out[statKey(op)] = val
	}

	return StepResult{
		StepIndex: stepIndex, Kind: planner.KindComputeStats, Status: StatusOk,
		Output: fmt.Sprintf("%v", out), DurationMillis: durationMillis(start),
	}
}

func statKey(op planner.StatOp) string {
	if op.Field == "" {
		return op.Op
	}
	if op.Op == "topK" {
		return fmt.Sprintf("%s:%s:%d", op.Op, op.Field, op.K)
	}
	return fmt.Sprintf("%s:%s", op.Op, op.Field)
}

func applyStatOp(op planner.StatOp, rows []map[string]any) (any, error) {
	switch op.Op {
	case "count":
		return len(rows), nil
	case "distinct":
		return distinctValues(rows, op.Field), nil
	case "topK":
		k := op.K
		if k <= 0 {
			k = 5
		}
		return topK(rows, op.Field, k), nil
	case "mean", "min", "max", "sum":
		return numericAggregate(op.Op, rows, op.Field)
	default:
		return nil, fmt.Errorf("unsupported stat op %q", op.Op)
	}
}

func distinctValues(rows []map[string]any, field string) []any {
	seen := map[any]bool{}
	var out []any
	for _, row := range rows {
		v, ok := row[field]
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

type countedValue struct {
	Value any
	Count int
}

func topK(rows []map[string]any, field string, k int) []countedValue {
	counts := map[any]int{}
	var order []any
	for _, row := range rows {
		v, ok := row[field]
		if !ok {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	entries := make([]countedValue, 0, len(order))
	for _, v := range order {
		entries = append(entries, countedValue{Value: v, Count: counts[v]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })

	if k < len(entries) {
		entries = entries[:k]
	}
	return entries
}

func numericAggregate(op string, rows []map[string]any, field string) (float64, error) {
	var values []float64
	for _, row := range rows {
		v, ok := row[field]
		if !ok {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("no numeric values for field %q", field)
	}

	switch op {
	case "sum":
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum, nil
	case "mean":
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	case "min":
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min, nil
	case "max":
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max, nil
	default:
		return 0, fmt.Errorf("unsupported numeric op %q", op)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// resolveStep looks up a 1-indexed prior step (spec.md §3 onStep/
// onSteps are 1-based references into the Plan's step list).
func resolveStep(onStep int, prior []StepResult) (StepResult, error) {
	idx := onStep - 1
	if idx < 0 || idx >= len(prior) {
		return StepResult{}, fmt.Errorf("onStep %d is out of range", onStep)
	}
	ref := prior[idx]
	if ref.Status != StatusOk {
		return StepResult{}, fmt.Errorf("step %d did not succeed", onStep)
	}
	return ref, nil
}
