// Package config loads environment-driven configuration for the agent
// process: schema TTL, row caps, timeouts, redaction, pool sizing, and
// log directory (spec.md §6 "Configuration"). All fields have
// production-ready defaults; absence of an environment variable is
// never fatal — only a malformed value is.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the umbrella configuration object for a single process.
type Config struct {
	HTTPPort string `validate:"required"`

	// Storage is the agent's own Postgres-backed persistence (sessions,
	// messages, memory records, profiles, schema registry snapshots).
	Storage StorageConfig `validate:"required"`

	// SchemaTTL is the Schema Registry freshness window (spec.md §4.3).
	SchemaTTL time.Duration `validate:"required,min=1s"`

	// DefaultRowCap is applied unconditionally to every read/aggregation
	// as min(requestedLimit, DefaultRowCap) (spec.md §9 open question).
	DefaultRowCap int `validate:"required,min=1"`

	// QueryTimeout is the per-statement deadline for target-database
	// queries (spec.md §5, default 15s).
	QueryTimeout time.Duration `validate:"required,min=1s"`

	// PreflightTimeout bounds connection-pool liveness probes
	// (spec.md §4.1, default 5s).
	PreflightTimeout time.Duration `validate:"required,min=1s"`

	// LLMTimeout is the deadline applied to LLM oracle calls when the
	// caller does not supply one.
	LLMTimeout time.Duration `validate:"required,min=1s"`

	// RedactSQL, when true, replaces ExecutedQuery.sql with the literal
	// "[redacted]" in any user-facing response (spec.md §4.4).
	RedactSQL bool

	// RelationalPoolMax bounds each relational connection pool (sqlA, sqlB).
	RelationalPoolMax int `validate:"required,min=1"`

	// LogDir is read from LOG_DIR. The process does not consult it:
	// cmd/dbagentd always logs JSON to stdout.
	LogDir string

	// LLMOracleURL is the base URL of the LLM oracle HTTP endpoint.
	// Empty disables the LLM and forces the deterministic heuristic
	// fallback everywhere it is consulted (spec.md §6 "LLM oracle contract").
	LLMOracleURL string

	// SessionIdleTimeout is the inactivity window after which the
	// housekeeping sweep marks a session idle (spec.md §4.8).
	SessionIdleTimeout time.Duration `validate:"required,min=1m"`

	// SessionExpiry is the storage-level TTL since last activity
	// (spec.md §3, default 30 days).
	SessionExpiry time.Duration `validate:"required,min=1h"`

	// MaxSessionsPerUser bounds concurrently joinable sessions per user.
	MaxSessionsPerUser int `validate:"required,min=1"`
}

// StorageConfig configures the agent's own Postgres-backed store.
type StorageConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"required"`
	User     string `validate:"required"`
	Password string
	Database string `validate:"required"`
	SSLMode  string `validate:"required"`

	MaxOpenConns    int           `validate:"required,min=1"`
	MaxIdleConns    int           `validate:"min=0"`
	ConnMaxLifetime time.Duration `validate:"required"`
	ConnMaxIdleTime time.Duration `validate:"required"`
}

// DSN renders a libpq-style connection string. Never log this verbatim;
// it carries the storage password.
func (s StorageConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.Database, s.SSLMode,
	)
}

// Validate runs struct-tag validation over the whole configuration tree.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Storage.MaxIdleConns > c.Storage.MaxOpenConns {
		return fmt.Errorf("STORAGE_MAX_IDLE_CONNS cannot exceed STORAGE_MAX_OPEN_CONNS")
	}
	return nil
}
