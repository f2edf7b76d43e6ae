package safety

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// dangerousOperators lists the server-side JavaScript execution operators
// the gate refuses to let through in a filter subtree (spec.md §4.4
// "Reject filter subtrees containing dangerous operators").
var dangerousOperators = map[string]bool{
	"$where":       true,
	"$function":    true,
	"$accumulator": true,
}

// writeStageOperators are aggregation pipeline stages that write back
// to storage (spec.md §4.4 "Reject aggregation stages that write back
// to storage").
var writeStageOperators = map[string]bool{
	"$out":   true,
	"$merge": true,
}

// hexIdentifier matches a bare 24-hex-character identifier string
// (spec.md §4.4 "opportunistically promoted to the database's native
// identifier type").
var hexIdentifier = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// DocumentGateConfig configures the document branch of the gate
// (spec.md §4.4).
type DocumentGateConfig struct {
	DefaultRowCap int64
	// Sensitive maps collection name to the sensitive field names
	// described in its schema (schema.Snapshot.SensitiveFieldNames).
	Sensitive map[string][]string
}

// EvaluateDocument validates and rewrites q per spec.md §4.4's
// document-query rules, returning the allowed, rewritten query.
func EvaluateDocument(q DocumentQuery, cfg DocumentGateConfig) (Verdict, error) {
	if err := checkNoDangerousOperators(q.Filter); err != nil {
		return Verdict{}, err
	}

	if q.Operation == OpAggregate {
		if err := checkNoWriteStages(q.Pipeline); err != nil {
			return Verdict{}, err
		}
		for _, stage := range q.Pipeline {
			if err := checkNoDangerousOperators(stage); err != nil {
				return Verdict{}, err
			}
		}
	}

	if writeOps[q.Operation] {
		if bulkOps[q.Operation] {
			return Verdict{}, rejected("bulk_write_not_permitted", string(q.Operation))
		}
		if needsFilter(q.Operation) && !hasSpecificFilter(q.Filter) {
			return Verdict{}, rejected("write_requires_filter", string(q.Operation))
		}
	}

	out := q
	out.Filter = coerceDateSentinels(promoteHexIdentifiers(q.Filter))

	sensitive := cfg.Sensitive[q.Collection]
	if err := validateProjectionOverride(out.Projection, sensitive); err != nil {
		return Verdict{}, err
	}
	if out.Operation == OpFind || out.Operation == OpFindOne {
		out.Projection = defaultProjection(out.Projection, sensitive)
	}

	if out.Operation == OpUpdateOne && out.Update != nil {
		out.Update = normalizeUpdateOperators(out.Update)
	}

	switch out.Operation {
	case OpFind:
		out.Limit = applyRowCap(out.Limit, cfg.DefaultRowCap)
	case OpAggregate:
		out.Pipeline = applyPipelineLimit(out.Pipeline, cfg.DefaultRowCap)
	}

	return Verdict{Allowed: true, Document: &out}, nil
}

func needsFilter(op Operation) bool {
	return op == OpUpdateOne || op == OpDeleteOne
}

// checkNoDangerousOperators walks the filter tree rejecting any of
// dangerousOperators appearing as a key at any depth, anywhere in the
// subtree (spec.md §8 "$where anywhere in a filter subtree (nested, in
// array) is rejected"). Arrays decoded off the wire by encoding/json
// come back as []interface{}, never []map[string]any, so that shape
// is walked explicitly rather than relying on a concrete-typed slice
// assertion.
func checkNoDangerousOperators(filter map[string]any) error {
	for k, v := range filter {
		if dangerousOperators[k] {
			return rejected("dangerous_operator", k)
		}
		if err := checkNoDangerousOperatorsValue(v); err != nil {
			return err
		}
	}
	return nil
}

// checkNoDangerousOperatorsValue recurses into a single filter value,
// covering the map and array shapes that can hold a nested operator.
func checkNoDangerousOperatorsValue(v any) error {
	switch val := v.(type) {
	case map[string]any:
		return checkNoDangerousOperators(val)
	case []map[string]any:
		for _, item := range val {
			if err := checkNoDangerousOperators(item); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range val {
			if err := checkNoDangerousOperatorsValue(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkNoWriteStages(pipeline []map[string]any) error {
	for _, stage := range pipeline {
		for k := range stage {
			if writeStageOperators[k] {
				return rejected("write_stage_not_permitted", k)
			}
		}
	}
	return nil
}

// hasSpecificFilter reports whether filter is non-empty (spec.md §4.4).
// The keys and values of a non-empty filter are not inspected, so a
// filter that matches every document still passes.
func hasSpecificFilter(filter map[string]any) bool {
	return len(filter) > 0
}

// validateProjectionOverride rejects a caller-supplied projection that
// re-includes a sensitive field (spec.md §4.4 "overrides cannot add
// sensitive fields").
func validateProjectionOverride(projection map[string]any, sensitive []string) error {
	if len(projection) == 0 {
		return nil
	}
	for _, name := range sensitive {
		if include, ok := projection[name]; ok && truthy(include) {
			return rejected("sensitive_field_projection", name)
		}
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return v != nil
	}
}

// defaultProjection excludes sensitive fields when the caller did not
// supply a projection (spec.md §4.4 "Projections default to excluding
// sensitive fields unless the caller overrode").
func defaultProjection(projection map[string]any, sensitive []string) map[string]any {
	if len(projection) > 0 || len(sensitive) == 0 {
		return projection
	}
	out := map[string]any{}
	for _, name := range sensitive {
		out[name] = 0
	}
	return out
}

// updateOperators are the recognized MongoDB update-operator keys; a
// plain object update lacking any of these is wrapped in $set (spec.md
// §4.4 "Updates are normalized to use an explicit set-operator form").
var updateOperators = map[string]bool{
	"$set": true, "$unset": true, "$inc": true, "$push": true,
	"$pull": true, "$addToSet": true, "$rename": true, "$currentDate": true,
}

func normalizeUpdateOperators(update map[string]any) map[string]any {
	for k := range update {
		if updateOperators[k] {
			return update
		}
	}
	return map[string]any{"$set": update}
}

// applyRowCap returns min(requested, defaultCap) when requested is
// set, otherwise defaultCap (spec.md §4.4, resolved per §9 Open
// Question: the cap is unconditional, never bypassed by a larger
// caller-supplied limit).
func applyRowCap(requested *int64, defaultCap int64) *int64 {
	limit := defaultCap
	if requested != nil && *requested < defaultCap {
		limit = *requested
	}
	return &limit
}

// applyPipelineLimit appends a $limit stage honoring defaultRowCap
// when the pipeline has no explicit limit stage, or tightens an
// existing one to defaultRowCap if larger (spec.md §4.4 "Aggregations
// without an explicit limit stage have one appended").
func applyPipelineLimit(pipeline []map[string]any, defaultRowCap int64) []map[string]any {
	for i, stage := range pipeline {
		if limit, ok := stage["$limit"]; ok {
			if n, ok := toInt64(limit); ok && n > defaultRowCap {
				stage["$limit"] = defaultRowCap
				pipeline[i] = stage
			}
			return pipeline
		}
	}
	return append(pipeline, map[string]any{"$limit": defaultRowCap})
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}

// promoteHexIdentifiers rewrites any string filter value matching a
// 24-hex-character pattern (spec.md §4.4, both kinds).
func promoteHexIdentifiers(filter map[string]any) map[string]any {
	if filter == nil {
		return nil
	}
	out := make(map[string]any, len(filter))
	for k, v := range filter {
		switch t := v.(type) {
		case string:
			if hexIdentifier.MatchString(t) {
				if oid, err := primitive.ObjectIDFromHex(t); err == nil {
					out[k] = oid
					continue
				}
			}
			out[k] = t
		case map[string]any:
			out[k] = promoteHexIdentifiers(t)
		default:
			out[k] = v
		}
	}
	return out
}
