package pipeline

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nlquery/dbagent/pkg/executor"
	"github.com/nlquery/dbagent/pkg/safety"
)

// mongoRunner executes gate-approved document queries against a live
// mongo-driver database, implementing executor.DocumentRunner.
// Grounded on the teacher's pkg/mcp tool-invocation style: one case
// per recognized operation, errors wrapped with the operation name.
type mongoRunner struct {
	db *mongo.Database
}

func newMongoRunner(db *mongo.Database) *mongoRunner {
	return &mongoRunner{db: db}
}

func (r *mongoRunner) Run(ctx context.Context, q safety.DocumentQuery) ([]map[string]any, int64, error) {
	coll := r.db.Collection(q.Collection)
	filter := toBSON(q.Filter)

	switch q.Operation {
	case safety.OpFind:
		return r.find(ctx, coll, q, filter)
	case safety.OpFindOne:
		return r.findOne(ctx, coll, filter, q.Projection)
	case safety.OpCount:
		total, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			return nil, 0, fmt.Errorf("count: %w", err)
		}
		return nil, total, nil
	case safety.OpAggregate:
		return r.aggregate(ctx, coll, q.Pipeline)
	case safety.OpInsertOne:
		res, err := coll.InsertOne(ctx, toBSON(q.Document))
		if err != nil {
			return nil, 0, fmt.Errorf("insertOne: %w", err)
		}
		return []map[string]any{{"insertedId": res.InsertedID}}, 1, nil
	case safety.OpUpdateOne:
		res, err := coll.UpdateOne(ctx, filter, toBSON(q.Update))
		if err != nil {
			return nil, 0, fmt.Errorf("updateOne: %w", err)
		}
		return []map[string]any{{"matchedCount": res.MatchedCount, "modifiedCount": res.ModifiedCount}}, res.ModifiedCount, nil
	case safety.OpDeleteOne:
		res, err := coll.DeleteOne(ctx, filter)
		if err != nil {
			return nil, 0, fmt.Errorf("deleteOne: %w", err)
		}
		return []map[string]any{{"deletedCount": res.DeletedCount}}, res.DeletedCount, nil
	default:
		return nil, 0, fmt.Errorf("unsupported document operation %q", q.Operation)
	}
}

func (r *mongoRunner) find(ctx context.Context, coll *mongo.Collection, q safety.DocumentQuery, filter bson.M) ([]map[string]any, int64, error) {
	opts := options.Find()
	if q.Projection != nil {
		opts.SetProjection(toBSON(q.Projection))
	}
	if q.Sort != nil {
		opts.SetSort(toBSON(q.Sort))
	}
	if q.Limit != nil {
		opts.SetLimit(*q.Limit)
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	rows, err := decodeAll(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return rows, int64(len(rows)), nil
	}
	return rows, total, nil
}

func (r *mongoRunner) findOne(ctx context.Context, coll *mongo.Collection, filter bson.M, projection map[string]any) ([]map[string]any, int64, error) {
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(toBSON(projection))
	}

	var doc bson.M
	err := coll.FindOne(ctx, filter, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("findOne: %w", err)
	}
	return []map[string]any{map[string]any(doc)}, 1, nil
}

func (r *mongoRunner) aggregate(ctx context.Context, coll *mongo.Collection, pipeline []map[string]any) ([]map[string]any, int64, error) {
	stages := make(mongo.Pipeline, 0, len(pipeline))
	for _, stage := range pipeline {
		doc := bson.D{}
		for k, v := range stage {
			doc = append(doc, bson.E{Key: k, Value: v})
		}
		stages = append(stages, doc)
	}

	cursor, err := coll.Aggregate(ctx, stages)
	if err != nil {
		return nil, 0, fmt.Errorf("aggregate: %w", err)
	}
	defer cursor.Close(ctx)

	rows, err := decodeAll(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}
	return rows, int64(len(rows)), nil
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]map[string]any, error) {
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	rows := make([]map[string]any, len(docs))
	for i, d := range docs {
		rows[i] = map[string]any(d)
	}
	return rows, nil
}

func toBSON(m map[string]any) bson.M {
	if m == nil {
		return bson.M{}
	}
	return bson.M(m)
}

// sqlRunner executes gate-approved relational queries against a live
// *sql.DB, implementing executor.RelationalRunner for both sqlA
// (PostgreSQL) and sqlB (MySQL) kinds — the driver difference is fully
// contained in the *sql.DB already opened by the Connection Pool.
// Grounded on the teacher's sqlx-based repository style (pkg/storage),
// generalized to run arbitrary gate-approved statements instead of a
// fixed set of named queries.
type sqlRunner struct {
	db *stdsql.DB
}

func (r *sqlRunner) Run(ctx context.Context, q safety.RelationalQuery) ([]map[string]any, int64, error) {
	rows, err := r.db.QueryContext(ctx, q.SQL, q.Parameters...)
	if err != nil {
		return execRelational(ctx, r.db, q)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, 0, fmt.Errorf("read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, 0, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rows: %w", err)
	}
	return out, int64(len(out)), nil
}

// execRelational falls back to Exec for statements that return no rows
// (INSERT/UPDATE/DELETE without RETURNING).
func execRelational(ctx context.Context, db *stdsql.DB, q safety.RelationalQuery) ([]map[string]any, int64, error) {
	res, err := db.ExecContext(ctx, q.SQL, q.Parameters...)
	if err != nil {
		return nil, 0, fmt.Errorf("exec: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, 0, nil
	}
	return []map[string]any{{"rowsAffected": affected}}, affected, nil
}

// timeoutDocumentRunner wraps a DocumentRunner with a per-statement
// wall-clock deadline (spec.md §5 "Each DB statement carries a
// configured wall-clock deadline (default 15s)").
type timeoutDocumentRunner struct {
	inner   executor.DocumentRunner
	timeout time.Duration
}

func (r *timeoutDocumentRunner) Run(ctx context.Context, q safety.DocumentQuery) ([]map[string]any, int64, error) {
	if r.timeout <= 0 {
		return r.inner.Run(ctx, q)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.inner.Run(ctx, q)
}

// timeoutRelationalRunner is the relational-side equivalent of
// timeoutDocumentRunner.
type timeoutRelationalRunner struct {
	inner   executor.RelationalRunner
	timeout time.Duration
}

func (r *timeoutRelationalRunner) Run(ctx context.Context, q safety.RelationalQuery) ([]map[string]any, int64, error) {
	if r.timeout <= 0 {
		return r.inner.Run(ctx, q)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.inner.Run(ctx, q)
}
