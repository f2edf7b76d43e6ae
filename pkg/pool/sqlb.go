package pool

import (
	"context"
	stdsql "database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql" // registers the "mysql" driver
	"github.com/nlquery/dbagent/pkg/dbendpoint"
)

// SQLBHandle wraps a *sql.DB for the MySQL-compatible kind.
type SQLBHandle struct {
	DB *stdsql.DB
}

func (h *SQLBHandle) Kind() dbendpoint.Kind { return dbendpoint.KindSQLB }
func (h *SQLBHandle) Close() error          { return h.DB.Close() }

// SQLBDialer opens a go-sql-driver/mysql backed *sql.DB, grounded on
// skeema-skeema's use of the same driver for MySQL introspection.
type SQLBDialer struct {
	MaxOpenConns int
}

func (d SQLBDialer) Dial(ctx context.Context, rawURL string, preflightTimeout time.Duration) (Handle, error) {
	dsn, err := mysqlDSN(rawURL)
	if err != nil {
		return nil, err
	}
	db, err := stdsql.Open("mysql", dsn)
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
	return &SQLBHandle{DB: db}, nil
}
