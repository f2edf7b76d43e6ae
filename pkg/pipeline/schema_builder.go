package pipeline

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"github.com/nlquery/dbagent/pkg/pool"
	"github.com/nlquery/dbagent/pkg/schema"
)

// driverNameForKind maps a relational Kind to the database/sql driver
// name registered by pkg/pool (pgx for sqlA, mysql for sqlB), needed to
// wrap the pool's *sql.DB in an *sqlx.DB for schema introspection.
func driverNameForKind(kind dbendpoint.Kind) string {
	if kind == dbendpoint.KindSQLA {
		return "pgx"
	}
	return "mysql"
}

// buildSchema dispatches to schema.DetectDocument/DetectRelational
// based on handle kind, implementing schema.Builder (spec.md §4.2,
// §4.3 "Builder produces a fresh Snapshot for a live handle").
func buildSchema(ctx context.Context, handle pool.Handle) (schema.Snapshot, error) {
	switch h := handle.(type) {
	case *pool.MongoHandle:
		return schema.DetectDocument(ctx, h.Client.Database(h.Database))
	case *pool.SQLAHandle:
		return schema.DetectRelational(ctx, sqlx.NewDb(h.DB, driverNameForKind(dbendpoint.KindSQLA)), dbendpoint.KindSQLA)
	case *pool.SQLBHandle:
		return schema.DetectRelational(ctx, sqlx.NewDb(h.DB, driverNameForKind(dbendpoint.KindSQLB)), dbendpoint.KindSQLB)
	default:
		return schema.Snapshot{}, fmt.Errorf("unrecognized connection handle type %T", handle)
	}
}
