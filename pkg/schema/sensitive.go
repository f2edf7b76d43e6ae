package schema

import "strings"

// sensitiveSubstrings lists name fragments that flag a field/column as
// sensitive (spec.md §4.2): still described in the schema so the Safety
// Gate can reference them, but excluded from projections/returned rows
// by default.
var sensitiveSubstrings = []string{"password", "secret", "token"}

// IsSensitiveFieldName reports whether name should be treated as
// sensitive by the Safety Gate's default projection/row filtering.
func IsSensitiveFieldName(name string) bool {
	lower := strings.ToLower(name)
	for _, frag := range sensitiveSubstrings {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// SensitiveFieldNames returns every sensitive field/column name present
// in the snapshot, keyed by table/collection name.
func (s Snapshot) SensitiveFieldNames() map[string][]string {
	out := map[string][]string{}
	for _, c := range s.Collections {
		for _, f := range c.Fields {
			if IsSensitiveFieldName(f.Name) {
				out[c.Collection] = append(out[c.Collection], f.Name)
			}
		}
	}
	for _, t := range s.Tables {
		for _, col := range t.Columns {
			if IsSensitiveFieldName(col.Name) {
				out[t.QualifiedTable] = append(out[t.QualifiedTable], col.Name)
			}
		}
	}
	return out
}
