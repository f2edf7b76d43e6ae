package safety

import "testing"

func docCfg() DocumentGateConfig {
	return DocumentGateConfig{
		DefaultRowCap: 1000,
		Sensitive:     map[string][]string{"users": {"password"}},
	}
}

func TestEvaluateDocumentRejectsDangerousOperator(t *testing.T) {
	q := DocumentQuery{Operation: OpFind, Collection: "users", Filter: map[string]any{"$where": "this.x == 1"}}
	if _, err := EvaluateDocument(q, docCfg()); err == nil {
		t.Fatal("expected rejection for $where")
	}
}

func TestEvaluateDocumentRejectsDangerousOperatorNestedInArray(t *testing.T) {
	q := DocumentQuery{
		Operation:  OpFind,
		Collection: "users",
		Filter: map[string]any{
			"$or": []any{
				map[string]any{"age": map[string]any{"$gt": 1}},
				map[string]any{"$where": "this.x == 1"},
			},
		},
	}
	if _, err := EvaluateDocument(q, docCfg()); err == nil {
		t.Fatal("expected rejection for $where nested inside a $or array")
	}
}

func TestEvaluateDocumentRejectsDangerousOperatorInPipelineStage(t *testing.T) {
	q := DocumentQuery{
		Operation:  OpAggregate,
		Collection: "users",
		Pipeline:   []map[string]any{{"$match": map[string]any{"$where": "this.x == 1"}}},
	}
	if _, err := EvaluateDocument(q, docCfg()); err == nil {
		t.Fatal("expected rejection for $where inside a pipeline stage body")
	}
}

func TestEvaluateDocumentRejectsWriteStage(t *testing.T) {
	q := DocumentQuery{
		Operation:  OpAggregate,
		Collection: "users",
		Pipeline:   []map[string]any{{"$match": map[string]any{}}, {"$merge": map[string]any{"into": "audit"}}},
	}
	if _, err := EvaluateDocument(q, docCfg()); err == nil {
		t.Fatal("expected rejection for $merge stage")
	}
}

func TestEvaluateDocumentRejectsBulkWrite(t *testing.T) {
	q := DocumentQuery{Operation: OpUpdateMany, Collection: "users", Filter: map[string]any{"active": true}}
	if _, err := EvaluateDocument(q, docCfg()); err == nil {
		t.Fatal("expected rejection for bulk write")
	}
}

func TestEvaluateDocumentRejectsWriteWithoutFilter(t *testing.T) {
	q := DocumentQuery{Operation: OpDeleteOne, Collection: "users", Filter: map[string]any{}}
	if _, err := EvaluateDocument(q, docCfg()); err == nil {
		t.Fatal("expected rejection for delete without specific filter")
	}
}

func TestEvaluateDocumentAllowsWriteWithFilter(t *testing.T) {
	q := DocumentQuery{Operation: OpDeleteOne, Collection: "users", Filter: map[string]any{"_id": "abc"}}
	v, err := EvaluateDocument(q, docCfg())
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if !v.Allowed {
		t.Fatal("expected allowed verdict")
	}
}

func TestEvaluateDocumentRejectsSensitiveProjectionOverride(t *testing.T) {
	q := DocumentQuery{
		Operation:  OpFind,
		Collection: "users",
		Filter:     map[string]any{},
		Projection: map[string]any{"password": 1},
	}
	if _, err := EvaluateDocument(q, docCfg()); err == nil {
		t.Fatal("expected rejection for projection override adding a sensitive field")
	}
}

func TestEvaluateDocumentDefaultsProjectionToExcludeSensitive(t *testing.T) {
	q := DocumentQuery{Operation: OpFind, Collection: "users", Filter: map[string]any{}}
	v, err := EvaluateDocument(q, docCfg())
	if err != nil {
		t.Fatal(err)
	}
	if v.Document.Projection["password"] != 0 {
		t.Error("expected default projection to exclude password")
	}
}

func TestEvaluateDocumentNormalizesPlainUpdate(t *testing.T) {
	q := DocumentQuery{
		Operation:  OpUpdateOne,
		Collection: "users",
		Filter:     map[string]any{"_id": "abc"},
		Update:     map[string]any{"active": false},
	}
	v, err := EvaluateDocument(q, docCfg())
	if err != nil {
		t.Fatal(err)
	}
	set, ok := v.Document.Update["$set"].(map[string]any)
	if !ok {
		t.Fatalf("expected update normalized under $set, got %#v", v.Document.Update)
	}
	if set["active"] != false {
		t.Error("expected original update fields preserved under $set")
	}
}

func TestEvaluateDocumentPassesThroughOperatorUpdate(t *testing.T) {
	q := DocumentQuery{
		Operation:  OpUpdateOne,
		Collection: "users",
		Filter:     map[string]any{"_id": "abc"},
		Update:     map[string]any{"$inc": map[string]any{"loginCount": 1}},
	}
	v, err := EvaluateDocument(q, docCfg())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.Document.Update["$inc"]; !ok {
		t.Error("expected existing operator form left untouched")
	}
}

func TestEvaluateDocumentInjectsRowCap(t *testing.T) {
	q := DocumentQuery{Operation: OpFind, Collection: "users", Filter: map[string]any{}}
	v, err := EvaluateDocument(q, docCfg())
	if err != nil {
		t.Fatal(err)
	}
	if v.Document.Limit == nil || *v.Document.Limit != 1000 {
		t.Errorf("expected default row cap injected, got %v", v.Document.Limit)
	}
}

func TestEvaluateDocumentHonorsSmallerCallerLimit(t *testing.T) {
	small := int64(5)
	q := DocumentQuery{Operation: OpFind, Collection: "users", Filter: map[string]any{}, Limit: &small}
	v, err := EvaluateDocument(q, docCfg())
	if err != nil {
		t.Fatal(err)
	}
	if *v.Document.Limit != 5 {
		t.Errorf("expected caller's smaller limit preserved, got %d", *v.Document.Limit)
	}
}

func TestEvaluateDocumentClampsLargerCallerLimit(t *testing.T) {
	large := int64(10000)
	q := DocumentQuery{Operation: OpFind, Collection: "users", Filter: map[string]any{}, Limit: &large}
	v, err := EvaluateDocument(q, docCfg())
	if err != nil {
		t.Fatal(err)
	}
	if *v.Document.Limit != 1000 {
		t.Errorf("expected clamp to default cap, got %d", *v.Document.Limit)
	}
}

func TestEvaluateDocumentAppendsAggregationLimitStage(t *testing.T) {
	q := DocumentQuery{
		Operation:  OpAggregate,
		Collection: "users",
		Pipeline:   []map[string]any{{"$match": map[string]any{}}},
	}
	v, err := EvaluateDocument(q, docCfg())
	if err != nil {
		t.Fatal(err)
	}
	last := v.Document.Pipeline[len(v.Document.Pipeline)-1]
	if last["$limit"] != int64(1000) {
		t.Errorf("expected appended $limit stage, got %#v", last)
	}
}

func TestEvaluateDocumentPromotesHexIdentifier(t *testing.T) {
	q := DocumentQuery{
		Operation:  OpFindOne,
		Collection: "users",
		Filter:     map[string]any{"_id": "507f1f77bcf86cd799439011"},
	}
	v, err := EvaluateDocument(q, docCfg())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.Document.Filter["_id"].(string); ok {
		t.Error("expected hex identifier promoted away from raw string")
	}
}
