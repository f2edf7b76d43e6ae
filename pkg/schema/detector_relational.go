package schema

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"golang.org/x/sync/errgroup"
)

type columnRow struct {
	TableName  string `db:"table_name"`
	ColumnName string `db:"column_name"`
	DataType   string `db:"data_type"`
	Nullable   bool   `db:"nullable"`
}

type keyRow struct {
	TableName  string `db:"table_name"`
	ColumnName string `db:"column_name"`
}

type fkRow struct {
	TableName      string `db:"table_name"`
	ColumnName     string `db:"column_name"`
	RefTable       string `db:"ref_table"`
	RefColumn      string `db:"ref_column"`
	ConstraintName string `db:"constraint_name"`
}

// DetectRelational introspects a PostgreSQL-compatible (sqlA) or
// MySQL-compatible (sqlB) database via information_schema, running the
// four queries concurrently and joining the results — directly
// grounded on skeema-skeema/introspect.go's querySchemaTables, which
// issues the same shape of concurrent information_schema queries with
// an errgroup.
func DetectRelational(ctx context.Context, db *sqlx.DB, kind dbendpoint.Kind) (Snapshot, error) {
	d := mysqlDialect
	if kind == dbendpoint.KindSQLA {
		d = postgresDialect
	}

	var tableNames []string
	var columns []columnRow
	var keys []keyRow
	var fks []fkRow

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return db.SelectContext(gctx, &tableNames, d.tablesQuery) })
	g.Go(func() error { return db.SelectContext(gctx, &columns, d.columnsQuery) })
	g.Go(func() error { return db.SelectContext(gctx, &keys, d.keysQuery) })
	g.Go(func() error { return db.SelectContext(gctx, &fks, d.foreignKeysQuery) })

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	columnsByTable := map[string][]Column{}
	for _, c := range columns {
		columnsByTable[c.TableName] = append(columnsByTable[c.TableName], Column{
			Name: c.ColumnName, Type: c.DataType, Nullable: c.Nullable,
		})
	}
	pkByTable := map[string][]string{}
	for _, k := range keys {
		pkByTable[k.TableName] = append(pkByTable[k.TableName], k.ColumnName)
	}
	fkByTable := map[string][]ForeignKey{}
	for _, f := range fks {
		fkByTable[f.TableName] = append(fkByTable[f.TableName], ForeignKey{
			Column: f.ColumnName, RefTable: f.RefTable, RefColumn: f.RefColumn,
			ConstraintName: f.ConstraintName,
		})
	}

	tables := make([]RelationalTable, 0, len(tableNames))
	for _, name := range tableNames {
		tables = append(tables, RelationalTable{
			QualifiedTable: name,
			Columns:        columnsByTable[name],
			PrimaryKey:     pkByTable[name],
			ForeignKeys:    fkByTable[name],
		})
	}

	return Snapshot{Tables: tables}, nil
}
