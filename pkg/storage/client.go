// Package storage implements the agent's own persistence: Sessions,
// ChatMessages, MemoryRecords, UserProfiles, and SchemaSnapshots
// (spec.md §3, §6 "Persisted state layout"). Grounded on the teacher's
// pkg/database/client.go: go:embed migrations applied with
// golang-migrate on startup, pgx as the driver. The teacher wraps an
// ent.Client on top of the same *sql.DB; this spec has no generated
// ORM, so the wrapper here is a plain *sqlx.DB used directly by the
// repos in this package.
package storage

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver for database/sql
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds the connection settings for the agent's own storage
// database (spec.md §6 configuration).
type Config struct {
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Client wraps the sqlx handle used by every repo in this package.
type Client struct {
	DB *sqlx.DB
}

// NewClient opens the storage database, configures the connection
// pool, and applies any pending migrations (spec.md §6 "Persisted
// state layout").
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	db, err := stdsql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping storage database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run storage migrations: %w", err)
	}

	return &Client{DB: sqlx.NewDb(db, "pgx")}, nil
}

// runMigrations applies every embedded migration using golang-migrate,
// mirroring the teacher's runMigrations but over a plain *sql.DB with
// no Ent driver to keep alive afterward.
func runMigrations(db *stdsql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "storage", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Close only the migration source; closing m would also close db,
	// which the caller still needs (same reasoning as the teacher's
	// client.go comment on sourceDriver.Close()).
	return sourceDriver.Close()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.DB.Close()
}
