package capability

import (
	"testing"

	"github.com/nlquery/dbagent/pkg/schema"
)

func sampleSnapshot() schema.Snapshot {
	return schema.Snapshot{
		Tables: []schema.RelationalTable{
			{
				QualifiedTable: "orders",
				Columns: []schema.Column{
					{Name: "id"}, {Name: "price"}, {Name: "quantity"},
					{Name: "product_id"}, {Name: "created_at"},
				},
			},
			{
				QualifiedTable: "users",
				Columns:        []schema.Column{{Name: "id"}, {Name: "email"}},
			},
		},
	}
}

func TestProfileDetectsTopSellingProducts(t *testing.T) {
	caps := Profile(sampleSnapshot())
	if !contains(caps, TopSellingProducts) {
		t.Errorf("expected top_selling_products, got %v", caps)
	}
}

func TestProfileDetectsRevenueOverTime(t *testing.T) {
	caps := Profile(sampleSnapshot())
	if !contains(caps, RevenueOverTime) {
		t.Errorf("expected revenue_over_time, got %v", caps)
	}
}

func TestProfileOmitsUnsupportedCapability(t *testing.T) {
	snap := schema.Snapshot{Tables: []schema.RelationalTable{
		{QualifiedTable: "users", Columns: []schema.Column{{Name: "id"}, {Name: "email"}}},
	}}
	caps := Profile(snap)
	if len(caps) != 0 {
		t.Errorf("expected no capabilities, got %v", caps)
	}
}

func TestCapabilitiesStringJoinsComma(t *testing.T) {
	s := CapabilitiesString([]Capability{TopSellingProducts, RevenueOverTime})
	if s != "top_selling_products,revenue_over_time" {
		t.Errorf("unexpected capabilities string: %q", s)
	}
}

func TestTokenizeExcludesStopwords(t *testing.T) {
	tokens := Tokenize("Show me all the orders from last week")
	for _, stop := range []string{"show", "me", "all", "the", "from"} {
		if containsStr(tokens, stop) {
			t.Errorf("expected stopword %q excluded, got %v", stop, tokens)
		}
	}
	if !containsStr(tokens, "orders") {
		t.Errorf("expected 'orders' token present, got %v", tokens)
	}
}

func TestMatchCandidatesFindsTableByName(t *testing.T) {
	candidates := MatchCandidates(sampleSnapshot(), []string{"orders"})
	if len(candidates) != 1 || candidates[0].Name != "orders" {
		t.Errorf("expected single orders candidate, got %v", candidates)
	}
}

func TestMatchCandidatesFindsTableByFieldName(t *testing.T) {
	candidates := MatchCandidates(sampleSnapshot(), []string{"email"})
	if len(candidates) != 1 || candidates[0].Name != "users" {
		t.Errorf("expected users candidate via field match, got %v", candidates)
	}
}

func TestMatchCandidatesAllowsEmptyResult(t *testing.T) {
	candidates := MatchCandidates(sampleSnapshot(), []string{"zzz_no_match"})
	if len(candidates) != 0 {
		t.Errorf("expected no candidates, got %v", candidates)
	}
}

func contains(caps []Capability, target Capability) bool {
	for _, c := range caps {
		if c == target {
			return true
		}
	}
	return false
}

func containsStr(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
