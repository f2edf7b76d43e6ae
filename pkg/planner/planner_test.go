package planner

import (
	"context"
	"testing"
)

type fakeOracle struct {
	reply string
	err   error
}

func (f fakeOracle) Generate(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func TestPlanUsesOracleOutputWhenValid(t *testing.T) {
	p := New(fakeOracle{reply: `{"steps":[{"kind":"dbQuery","subQuery":"count orders"}]}`})
	plan := p.Plan(context.Background(), Request{UserText: "how many orders"})
	if len(plan.Steps) != 1 || plan.Steps[0].Kind != KindDBQuery {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.Steps[0].SubQuery != "count orders" {
		t.Errorf("expected subQuery from oracle, got %q", plan.Steps[0].SubQuery)
	}
}

func TestPlanFallsBackOnOracleError(t *testing.T) {
	p := New(fakeOracle{err: context.DeadlineExceeded})
	plan := p.Plan(context.Background(), Request{UserText: "how many orders"})
	if len(plan.Steps) != 1 || plan.Steps[0].SubQuery != "how many orders" {
		t.Fatalf("expected heuristic fallback, got %+v", plan)
	}
}

func TestPlanFallsBackOnUnparseableOutput(t *testing.T) {
	p := New(fakeOracle{reply: "not json at all"})
	plan := p.Plan(context.Background(), Request{UserText: "latest signups"})
	if len(plan.Steps) != 1 || plan.Steps[0].SubQuery != "latest signups" {
		t.Fatalf("expected heuristic fallback, got %+v", plan)
	}
}

func TestPlanNilOracleAlwaysHeuristic(t *testing.T) {
	p := New(nil)
	plan := p.Plan(context.Background(), Request{UserText: "top products"})
	if len(plan.Steps) != 1 || plan.Steps[0].SubQuery != "top products" {
		t.Fatalf("expected heuristic plan, got %+v", plan)
	}
}

func TestPlanHandlesFencedJSON(t *testing.T) {
	p := New(fakeOracle{reply: "```json\n{\"steps\":[{\"kind\":\"dbQuery\",\"subQuery\":\"x\"}]}\n```"})
	plan := p.Plan(context.Background(), Request{UserText: "x"})
	if len(plan.Steps) != 1 {
		t.Fatalf("expected fenced JSON parsed, got %+v", plan)
	}
}

func TestIsConversationalMatchesGreetingsAndThanks(t *testing.T) {
	for _, text := range []string{"hi", "Hello!", "thanks", "how are you?", "bye"} {
		if !IsConversational(text) {
			t.Errorf("expected %q to be conversational", text)
		}
	}
}

func TestIsConversationalRejectsRealQueries(t *testing.T) {
	if IsConversational("how many orders were placed today") {
		t.Error("expected a real query to not match conversational patterns")
	}
}
