package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/nlquery/dbagent/pkg/schema"
)

// SchemaRegistryRepo persists schema.Snapshot values, implementing
// schema.Store (spec.md §4.3 "Thin persistence layer over
// SchemaSnapshot").
type SchemaRegistryRepo struct {
	db *sqlx.DB
}

// NewSchemaRegistryRepo constructs a SchemaRegistryRepo over db.
func NewSchemaRegistryRepo(db *sqlx.DB) *SchemaRegistryRepo {
	return &SchemaRegistryRepo{db: db}
}

var _ schema.Store = (*SchemaRegistryRepo)(nil)

// GetSnapshot returns the persisted snapshot for dbKey, if any.
func (r *SchemaRegistryRepo) GetSnapshot(ctx context.Context, dbKey string) (schema.Snapshot, bool, error) {
	query, args, err := sq.Select("db_key", "snapshot", "last_built").
		From("schema_registry").
		Where(sq.Eq{"db_key": dbKey}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return schema.Snapshot{}, false, fmt.Errorf("build query: %w", err)
	}

	var row SchemaRegistryRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return schema.Snapshot{}, false, nil
		}
		return schema.Snapshot{}, false, fmt.Errorf("query schema_registry: %w", err)
	}

	var snap schema.Snapshot
	if err := json.Unmarshal(row.Snapshot, &snap); err != nil {
		return schema.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.DBKey = row.DBKey
	snap.LastBuilt = row.LastBuilt
	return snap, true, nil
}

// PutSnapshot upserts the snapshot for dbKey.
func (r *SchemaRegistryRepo) PutSnapshot(ctx context.Context, dbKey string, snap schema.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	query, args, err := sq.Insert("schema_registry").
		Columns("db_key", "snapshot", "last_built").
		Values(dbKey, payload, snap.LastBuilt).
		Suffix("ON CONFLICT (db_key) DO UPDATE SET snapshot = EXCLUDED.snapshot, last_built = EXCLUDED.last_built").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert schema_registry: %w", err)
	}
	return nil
}
