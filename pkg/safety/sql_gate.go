package safety

import "time"

// RelationalGateConfig configures the relational branch of the gate
// (spec.md §4.4).
type RelationalGateConfig struct {
	// Dialect is the target placeholder dialect: "postgres" or "mysql".
	Dialect string
	// StatementTimeout is the time budget attached to the statement.
	StatementTimeout time.Duration
	// RedactSQL replaces SQL text in user-facing responses with
	// "[redacted]" when true; parameter values are never echoed
	// regardless of this setting.
	RedactSQL bool
	// DefaultRowCap bounds every read query's result set the same way
	// DocumentGateConfig.DefaultRowCap bounds Mongo find/aggregate
	// (spec.md §5/§8). It is enforced by rewriting/injecting a LIMIT
	// clause, never by trusting the caller's own limit.
	DefaultRowCap int64
}

// EvaluateRelational runs q through every SQLRule in order, normalizes
// its placeholders to cfg.Dialect, and returns the resulting Verdict.
// The first rule violation is fatal (spec.md §4.4).
func EvaluateRelational(q RelationalQuery, cfg RelationalGateConfig) (Verdict, error) {
	for _, rule := range sqlRules {
		if err := rule.Check(q.SQL); err != nil {
			return Verdict{}, err
		}
	}

	normalized, err := normalizePlaceholders(q.SQL, cfg.Dialect, len(q.Parameters))
	if err != nil {
		return Verdict{}, err
	}

	out := q
	out.SQL = applyRowCapSQL(normalized, cfg.DefaultRowCap)
	out.Parameters = coerceParameterSentinels(q.Parameters)
	return Verdict{
		Allowed:       true,
		Relational:    &out,
		Redacted:      cfg.RedactSQL,
		StatementTime: cfg.StatementTimeout,
	}, nil
}

// RedactedSQL returns the SQL text to surface to the caller: the
// literal text when redaction is off, or the fixed "[redacted]" marker
// when on (spec.md §4.4). Parameter values are never echoed by this
// function regardless.
func RedactedSQL(q RelationalQuery, redact bool) string {
	if redact {
		return "[redacted]"
	}
	return q.SQL
}
