package capability

import (
	"strings"
	"unicode"

	"github.com/nlquery/dbagent/pkg/schema"
)

// stopwords is a small English stopword set excluded from token
// extraction (spec.md §4.5).
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "to": true, "for": true,
	"in": true, "on": true, "and": true, "or": true, "is": true, "are": true,
	"me": true, "my": true, "i": true, "what": true, "show": true, "give": true,
	"with": true, "by": true, "from": true, "all": true, "get": true, "find": true,
}

// Candidate is a table/collection the Keyword Matcher suggests as
// relevant to the user's text.
type Candidate struct {
	Name          string
	MatchedTokens []string
}

// Tokenize extracts lower-cased word tokens from text, excluding
// stopwords (spec.md §4.5). Empty result is valid.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		lower := strings.ToLower(f)
		if lower == "" || stopwords[lower] {
			continue
		}
		out = append(out, lower)
	}
	return out
}

// MatchCandidates returns every table/collection whose name or any
// field/column name contains at least one token, in snapshot
// declaration order. Empty matches are permitted (spec.md §4.5).
func MatchCandidates(snap schema.Snapshot, tokens []string) []Candidate {
	var out []Candidate
	for _, c := range snap.Collections {
		names := append([]string{c.Collection}, fieldNames(c)...)
		if matched := matchedTokens(names, tokens); len(matched) > 0 {
			out = append(out, Candidate{Name: c.Collection, MatchedTokens: matched})
		}
	}
	for _, t := range snap.Tables {
		names := append([]string{t.QualifiedTable}, columnNames(t)...)
		if matched := matchedTokens(names, tokens); len(matched) > 0 {
			out = append(out, Candidate{Name: t.QualifiedTable, MatchedTokens: matched})
		}
	}
	return out
}

func fieldNames(c schema.DocumentCollection) []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

func columnNames(t schema.RelationalTable) []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

func matchedTokens(names []string, tokens []string) []string {
	var matched []string
	for _, token := range tokens {
		for _, name := range names {
			if strings.Contains(strings.ToLower(name), token) {
				matched = append(matched, token)
				break
			}
		}
	}
	return matched
}
