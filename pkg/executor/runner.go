package executor

import (
	"context"

	"github.com/nlquery/dbagent/pkg/safety"
)

// DocumentRunner executes a gate-approved document query against a
// live handle (wired by pkg/pipeline to the Connection Pool's
// *pool.MongoHandle).
type DocumentRunner interface {
	Run(ctx context.Context, q safety.DocumentQuery) (rows []map[string]any, total int64, err error)
}

// RelationalRunner executes a gate-approved relational query against
// a live handle (wired by pkg/pipeline to *pool.SQLAHandle /
// *pool.SQLBHandle).
type RelationalRunner interface {
	Run(ctx context.Context, q safety.RelationalQuery) (rows []map[string]any, total int64, err error)
}
