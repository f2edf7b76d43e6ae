package safety

import "testing"

func cfg() RelationalGateConfig {
	return RelationalGateConfig{Dialect: "postgres", DefaultRowCap: 1000}
}

func TestEvaluateRelationalRejectsMultipleStatements(t *testing.T) {
	_, err := EvaluateRelational(RelationalQuery{SQL: "SELECT 1; SELECT 2"}, cfg())
	if err == nil {
		t.Fatal("expected rejection for multiple statements")
	}
}

func TestEvaluateRelationalRejectsForbiddenVerbs(t *testing.T) {
	for _, sql := range []string{"DROP TABLE users", "TRUNCATE orders", "ALTER TABLE x ADD y int"} {
		if _, err := EvaluateRelational(RelationalQuery{SQL: sql}, cfg()); err == nil {
			t.Errorf("expected rejection for %q", sql)
		}
	}
}

func TestEvaluateRelationalRejectsComments(t *testing.T) {
	_, err := EvaluateRelational(RelationalQuery{SQL: "SELECT 1 -- fetch later"}, cfg())
	if err == nil {
		t.Fatal("expected rejection for comment syntax")
	}
}

func TestEvaluateRelationalRejectsUpdateWithoutWhere(t *testing.T) {
	_, err := EvaluateRelational(RelationalQuery{SQL: "UPDATE users SET active = false"}, cfg())
	if err == nil {
		t.Fatal("expected rejection for UPDATE without WHERE")
	}
}

func TestEvaluateRelationalAllowsUpdateWithWhere(t *testing.T) {
	v, err := EvaluateRelational(RelationalQuery{SQL: "UPDATE users SET active = $1 WHERE id = $2", Parameters: []any{false, 7}}, cfg())
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if !v.Allowed {
		t.Fatal("expected allowed verdict")
	}
}

func TestEvaluateRelationalNormalizesPlaceholdersToPostgres(t *testing.T) {
	v, err := EvaluateRelational(RelationalQuery{SQL: "SELECT * FROM users WHERE id = ?", Parameters: []any{7}}, cfg())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Relational.SQL != "SELECT * FROM users WHERE id = $1 LIMIT 1000" {
		t.Errorf("expected normalized placeholder, got %q", v.Relational.SQL)
	}
}

func TestEvaluateRelationalNormalizesPlaceholdersToMySQL(t *testing.T) {
	v, err := EvaluateRelational(RelationalQuery{SQL: "SELECT * FROM users WHERE id = $1", Parameters: []any{7}}, RelationalGateConfig{Dialect: "mysql", DefaultRowCap: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Relational.SQL != "SELECT * FROM users WHERE id = ? LIMIT 1000" {
		t.Errorf("expected ? placeholder, got %q", v.Relational.SQL)
	}
}

func TestEvaluateRelationalInjectsRowCapWhenAbsent(t *testing.T) {
	v, err := EvaluateRelational(RelationalQuery{SQL: "SELECT * FROM users"}, cfg())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Relational.SQL != "SELECT * FROM users LIMIT 1000" {
		t.Errorf("expected injected row cap, got %q", v.Relational.SQL)
	}
}

func TestEvaluateRelationalTightensOversizedLimit(t *testing.T) {
	v, err := EvaluateRelational(RelationalQuery{SQL: "SELECT * FROM users LIMIT 50000"}, cfg())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Relational.SQL != "SELECT * FROM users LIMIT 1000" {
		t.Errorf("expected tightened row cap, got %q", v.Relational.SQL)
	}
}

func TestEvaluateRelationalKeepsSmallerExplicitLimit(t *testing.T) {
	v, err := EvaluateRelational(RelationalQuery{SQL: "SELECT * FROM users LIMIT 5"}, cfg())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Relational.SQL != "SELECT * FROM users LIMIT 5" {
		t.Errorf("expected unmodified smaller limit, got %q", v.Relational.SQL)
	}
}

func TestEvaluateRelationalDoesNotInjectLimitOnWrites(t *testing.T) {
	v, err := EvaluateRelational(RelationalQuery{SQL: "UPDATE users SET active = $1 WHERE id = $2", Parameters: []any{false, 7}}, cfg())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Relational.SQL != "UPDATE users SET active = $1 WHERE id = $2" {
		t.Errorf("expected no row cap on write statement, got %q", v.Relational.SQL)
	}
}

func TestEvaluateRelationalRejectsPlaceholderCountMismatch(t *testing.T) {
	_, err := EvaluateRelational(RelationalQuery{SQL: "SELECT * FROM users WHERE id = $1 AND name = $2", Parameters: []any{7}}, cfg())
	if err == nil {
		t.Fatal("expected rejection for placeholder/parameter count mismatch")
	}
}

func TestEvaluateRelationalRedactsSQLInVerdict(t *testing.T) {
	v, err := EvaluateRelational(RelationalQuery{SQL: "SELECT id FROM users WHERE id = $1", Parameters: []any{7}}, RelationalGateConfig{Dialect: "postgres", RedactSQL: true})
	if err != nil {
		t.Fatal(err)
	}
	if RedactedSQL(*v.Relational, v.Redacted) != "[redacted]" {
		t.Error("expected redacted SQL text")
	}
}

func TestCountPlaceholdersIgnoresQuotedQuestionMark(t *testing.T) {
	n := countPlaceholders("SELECT * FROM t WHERE note = 'what?' AND id = ?")
	if n != 1 {
		t.Errorf("expected 1 placeholder, got %d", n)
	}
}
