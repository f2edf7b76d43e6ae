// Package capability implements the Capability Profiler and Keyword
// Matcher (spec.md §4.5): pure heuristic hinting layers over a
// SchemaSnapshot and free-form request text, with zero false-positive
// writes — grounded on the teacher's preference for small, directly
// testable pure functions (pkg/masking/pattern.go, pkg/agent/context.go).
package capability

import (
	"strings"

	"github.com/nlquery/dbagent/pkg/schema"
)

// Capability is one answerable question class the profiler can
// suggest based on column/field presence (spec.md §4.5).
type Capability string

const (
	TopSellingProducts Capability = "top_selling_products"
	RevenueOverTime    Capability = "revenue_over_time"
	ActivityOverTime   Capability = "activity_over_time"
)

// fieldGroup lists the name fragments that, when present together on
// one table/collection, license a Capability. A fragment may list
// alternatives separated by "|"; any one of them satisfies it.
type fieldGroup struct {
	capability Capability
	fragments  []string
}

var fieldGroups = []fieldGroup{
	{TopSellingProducts, []string{"price", "quantity", "product"}},
	{RevenueOverTime, []string{"price", "date|_at|timestamp"}},
	{ActivityOverTime, []string{"date|_at|timestamp"}},
}

// Profile inspects snap and returns the set of capabilities licensed
// by at least one table/collection's field names, in fieldGroups
// declaration order with no duplicates.
func Profile(snap schema.Snapshot) []Capability {
	names := entityFieldNames(snap)

	seen := map[Capability]bool{}
	var out []Capability
	for _, group := range fieldGroups {
		if seen[group.capability] {
			continue
		}
		for _, fields := range names {
			if hasAllFragments(fields, group.fragments) {
				seen[group.capability] = true
				out = append(out, group.capability)
				break
			}
		}
	}
	return out
}

// entityFieldNames returns, per table/collection, the lower-cased
// field/column names it declares.
func entityFieldNames(snap schema.Snapshot) [][]string {
	var out [][]string
	for _, c := range snap.Collections {
		names := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			names[i] = strings.ToLower(f.Name)
		}
		out = append(out, names)
	}
	for _, t := range snap.Tables {
		names := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			names[i] = strings.ToLower(col.Name)
		}
		out = append(out, names)
	}
	return out
}

// hasAllFragments reports whether every fragment (or one of its
// "|"-separated alternatives) is a substring of at least one name in
// names.
func hasAllFragments(names []string, fragments []string) bool {
	for _, frag := range fragments {
		found := false
		for _, n := range names {
			for _, alt := range strings.Split(frag, "|") {
				if strings.Contains(n, alt) {
					found = true
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CapabilitiesString renders capabilities as the compact, comma-joined
// string the planner consumes as context (spec.md §4.6).
func CapabilitiesString(capabilities []Capability) string {
	parts := make([]string, len(capabilities))
	for i, c := range capabilities {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
