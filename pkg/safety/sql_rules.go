package safety

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// forbiddenVerb matches DROP/TRUNCATE/ALTER as a whole word anywhere in
// the SQL text, in verb position or not (e.g. inside a string literal)
// (spec.md §4.4), compiled once at package init — the same
// compile-once-pattern-table style as the teacher's
// pkg/masking/pattern.go CompiledPattern table.
var forbiddenVerb = regexp.MustCompile(`(?i)\b(DROP|TRUNCATE|ALTER)\b`)

// commentSyntax matches embedded SQL comment syntax (spec.md §4.4
// "Reject embedded comment syntax").
var commentSyntax = regexp.MustCompile(`(--|/\*|\*/|#)`)

// updateVerb / deleteVerb detect the statement's leading DML verb.
var updateVerb = regexp.MustCompile(`(?i)^\s*UPDATE\b`)
var deleteVerb = regexp.MustCompile(`(?i)^\s*DELETE\b`)
var insertVerb = regexp.MustCompile(`(?i)^\s*INSERT\b`)
var whereClause = regexp.MustCompile(`(?i)\bWHERE\b`)

// trailingLimit matches a trailing LIMIT clause (optionally followed
// by OFFSET), the form every dialect this gate targets accepts
// (spec.md §4.4 row-cap invariant, applied here the way
// applyRowCap/applyPipelineLimit apply it to Mongo find/aggregate).
var trailingLimit = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)(\s+OFFSET\s+\d+)?\s*$`)

// positionalPlaceholder matches Postgres-style $1, $2, ... placeholders.
var positionalPlaceholder = regexp.MustCompile(`\$\d+`)

// quotedLiteral matches a single-quoted string literal; literals are
// stripped before MySQL-style ? placeholders are counted, so a ? inside
// a literal is not taken for a placeholder.
var quotedLiteral = regexp.MustCompile(`'(?:[^'\\]|\\.)*'`)

// SQLRule is a single named predicate/rewriter over relational SQL
// text, mirroring the teacher's CompiledPattern: a name plus the
// compiled check it applies.
type SQLRule struct {
	Name  string
	Check func(sql string) error
}

// sqlRules is the ordered rule table applied to every RelationalQuery
// (spec.md §4.4, "Relational queries").
var sqlRules = []SQLRule{
	{Name: "single_statement", Check: checkSingleStatement},
	{Name: "forbidden_verb", Check: checkForbiddenVerb},
	{Name: "comment_syntax", Check: checkCommentSyntax},
	{Name: "write_requires_where", Check: checkWriteRequiresWhere},
}

// checkSingleStatement rejects SQL containing more than one
// terminating separator (spec.md §4.4 "Must be a single statement").
func checkSingleStatement(sql string) error {
	trimmed := strings.TrimSpace(stripTrailingSemicolon(sql))
	if strings.Contains(trimmed, ";") {
		return rejected("single_statement", "more than one statement separator")
	}
	return nil
}

func stripTrailingSemicolon(sql string) string {
	trimmed := strings.TrimRight(sql, " \t\n\r")
	return strings.TrimSuffix(trimmed, ";")
}

func checkForbiddenVerb(sql string) error {
	if forbiddenVerb.MatchString(sql) {
		return rejected("forbidden_verb", "DROP/TRUNCATE/ALTER are not permitted")
	}
	return nil
}

func checkCommentSyntax(sql string) error {
	if commentSyntax.MatchString(sql) {
		return rejected("comment_syntax", "embedded comment syntax is not permitted")
	}
	return nil
}

// checkWriteRequiresWhere rejects UPDATE/DELETE statements lacking a
// WHERE clause (spec.md §4.4).
func checkWriteRequiresWhere(sql string) error {
	isUpdate := updateVerb.MatchString(sql)
	isDelete := deleteVerb.MatchString(sql)
	if (isUpdate || isDelete) && !whereClause.MatchString(sql) {
		return rejected("write_requires_where", "UPDATE/DELETE without WHERE is not permitted")
	}
	return nil
}

// countPlaceholders returns the number of dialect-agnostic bind
// placeholders in sql: positional $N markers, or bare '?' markers
// outside quoted string literals.
func countPlaceholders(sql string) int {
	if n := len(positionalPlaceholder.FindAllString(sql, -1)); n > 0 {
		return n
	}
	stripped := quotedLiteral.ReplaceAllString(sql, "")
	return strings.Count(stripped, "?")
}

// normalizePlaceholders rewrites sql's placeholders to the target
// dialect form, preserving parameter count and order (spec.md §4.4
// "the caller may produce one dialect and the gate normalizes to the
// other, provided the parameter count is preserved — mismatch is
// fatal"). target is either "postgres" ($N) or "mysql" (?).
func normalizePlaceholders(sql string, target string, paramCount int) (string, error) {
	switch target {
	case "postgres":
		if !positionalPlaceholder.MatchString(sql) {
			rewritten, n := rewriteQuestionToPositional(sql)
			if n != paramCount {
				return "", rejected("placeholder_mismatch", "parameter count does not match placeholder count")
			}
			return rewritten, nil
		}
		if countPlaceholders(sql) != paramCount {
			return "", rejected("placeholder_mismatch", "parameter count does not match placeholder count")
		}
		return sql, nil
	case "mysql":
		if positionalPlaceholder.MatchString(sql) {
			rewritten := positionalPlaceholder.ReplaceAllString(sql, "?")
			if countPlaceholders(rewritten) != paramCount {
				return "", rejected("placeholder_mismatch", "parameter count does not match placeholder count")
			}
			return rewritten, nil
		}
		if countPlaceholders(sql) != paramCount {
			return "", rejected("placeholder_mismatch", "parameter count does not match placeholder count")
		}
		return sql, nil
	default:
		return sql, nil
	}
}

// applyRowCapSQL tightens sql's trailing LIMIT to at most defaultCap,
// or appends one if sql has none (spec.md §5/§8 "for every
// read/aggregation result, |rows| <= configured default row cap" —
// the relational counterpart to document_rules.go's applyRowCap).
func applyRowCapSQL(sql string, defaultCap int64) string {
	if updateVerb.MatchString(sql) || deleteVerb.MatchString(sql) || insertVerb.MatchString(sql) {
		return sql
	}

	trimmed := strings.TrimRight(sql, " \t\n\r")
	hadSemicolon := strings.HasSuffix(trimmed, ";")
	trimmed = strings.TrimSuffix(trimmed, ";")

	if loc := trailingLimit.FindStringSubmatchIndex(trimmed); loc != nil {
		n, err := strconv.ParseInt(trimmed[loc[2]:loc[3]], 10, 64)
		if err == nil && n > defaultCap {
			trimmed = trimmed[:loc[2]] + strconv.FormatInt(defaultCap, 10) + trimmed[loc[3]:]
		}
	} else {
		trimmed = trimmed + fmt.Sprintf(" LIMIT %d", defaultCap)
	}

	if hadSemicolon {
		trimmed += ";"
	}
	return trimmed
}

// rewriteQuestionToPositional replaces bare '?' placeholders (outside
// quoted literals) with sequential $1, $2, ... markers, returning the
// rewritten SQL and the number of placeholders replaced.
func rewriteQuestionToPositional(sql string) (string, int) {
	var b strings.Builder
	n := 0
	inQuote := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' && (i == 0 || sql[i-1] != '\\'):
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), n
}
