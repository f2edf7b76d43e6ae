package pool

import (
	"context"
	stdsql "database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/nlquery/dbagent/pkg/dbendpoint"
)

// SQLAHandle wraps a *sql.DB for the PostgreSQL-compatible kind.
type SQLAHandle struct {
	DB *stdsql.DB
}

func (h *SQLAHandle) Kind() dbendpoint.Kind { return dbendpoint.KindSQLA }
func (h *SQLAHandle) Close() error          { return h.DB.Close() }

// SQLADialer opens a pgx-backed *sql.DB and preflights it with SELECT 1,
// pool size bounded by MaxOpenConns (spec.md §4.1 "Relational pool sizing").
type SQLADialer struct {
	MaxOpenConns int
}

func (d SQLADialer) Dial(ctx context.Context, rawURL string, preflightTimeout time.Duration) (Handle, error) {
	db, err := stdsql.Open("pgx", rawURL)
	if err != nil {
		return nil, err
	}
	if d.MaxOpenConns > 0 {
		db.SetMaxOpenConns(d.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()
	if _, err := db.ExecContext(pingCtx, "SELECT 1"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLAHandle{DB: db}, nil
}
