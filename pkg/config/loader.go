package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadFromEnv builds a Config from environment variables, applying the
// same getEnvOrDefault + explicit-parse-then-validate discipline the
// teacher's database.LoadConfigFromEnv uses.
func LoadFromEnv() (*Config, error) {
	storagePort, err := strconv.Atoi(getEnvOrDefault("STORAGE_DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_DB_PORT: %w", err)
	}
	maxOpen, err := strconv.Atoi(getEnvOrDefault("STORAGE_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := strconv.Atoi(getEnvOrDefault("STORAGE_MAX_IDLE_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_MAX_IDLE_CONNS: %w", err)
	}
	connMaxLifetime, err := time.ParseDuration(getEnvOrDefault("STORAGE_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_CONN_MAX_LIFETIME: %w", err)
	}
	connMaxIdleTime, err := time.ParseDuration(getEnvOrDefault("STORAGE_CONN_MAX_IDLE_TIME", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_CONN_MAX_IDLE_TIME: %w", err)
	}

	schemaTTL, err := time.ParseDuration(getEnvOrDefault("SCHEMA_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEMA_TTL: %w", err)
	}
	rowCap, err := strconv.Atoi(getEnvOrDefault("DEFAULT_ROW_CAP", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_ROW_CAP: %w", err)
	}
	queryTimeout, err := time.ParseDuration(getEnvOrDefault("QUERY_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid QUERY_TIMEOUT: %w", err)
	}
	preflightTimeout, err := time.ParseDuration(getEnvOrDefault("PREFLIGHT_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PREFLIGHT_TIMEOUT: %w", err)
	}
	llmTimeout, err := time.ParseDuration(getEnvOrDefault("LLM_TIMEOUT", "20s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_TIMEOUT: %w", err)
	}
	redactSQL := getEnvOrDefault("REDACT_SQL", "true") == "true"
	poolMax, err := strconv.Atoi(getEnvOrDefault("RELATIONAL_POOL_MAX", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RELATIONAL_POOL_MAX: %w", err)
	}
	idleTimeout, err := time.ParseDuration(getEnvOrDefault("SESSION_IDLE_TIMEOUT", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_IDLE_TIMEOUT: %w", err)
	}
	sessionExpiry, err := time.ParseDuration(getEnvOrDefault("SESSION_EXPIRY", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_EXPIRY: %w", err)
	}
	maxSessions, err := strconv.Atoi(getEnvOrDefault("MAX_SESSIONS_PER_USER", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_SESSIONS_PER_USER: %w", err)
	}

	cfg := &Config{
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),
		Storage: StorageConfig{
			Host:            getEnvOrDefault("STORAGE_DB_HOST", "localhost"),
			Port:            storagePort,
			User:            getEnvOrDefault("STORAGE_DB_USER", "dbagent"),
			Password:        os.Getenv("STORAGE_DB_PASSWORD"),
			Database:        getEnvOrDefault("STORAGE_DB_NAME", "dbagent"),
			SSLMode:         getEnvOrDefault("STORAGE_DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
		},
		SchemaTTL:          schemaTTL,
		DefaultRowCap:      rowCap,
		QueryTimeout:       queryTimeout,
		PreflightTimeout:   preflightTimeout,
		LLMTimeout:         llmTimeout,
		RedactSQL:          redactSQL,
		RelationalPoolMax:  poolMax,
		LogDir:             os.Getenv("LOG_DIR"),
		LLMOracleURL:       os.Getenv("LLM_ORACLE_URL"),
		SessionIdleTimeout: idleTimeout,
		SessionExpiry:      sessionExpiry,
		MaxSessionsPerUser: maxSessions,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
