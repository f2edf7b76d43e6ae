package schema

// dialect isolates the information_schema quirks between the two
// relational kinds, mirroring skeema-skeema's Flavor abstraction
// narrowed to only what this spec needs: table/column/PK/FK queries.
type dialect struct {
	// tablesQuery lists base tables visible to the connected user,
	// excluding system/information_schema tables.
	tablesQuery string
	// columnsQuery lists columns ordinal-position ordered for every
	// table in scope.
	columnsQuery string
	// keysQuery lists primary-key column membership per table.
	keysQuery string
	// foreignKeysQuery lists FK constraints with their target.
	foreignKeysQuery string
}

var postgresDialect = dialect{
	tablesQuery: `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	columnsQuery: `
		SELECT table_name, column_name, data_type,
		       (is_nullable = 'YES') AS nullable
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`,
	keysQuery: `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name
		 AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = 'public'
		ORDER BY tc.table_name, kcu.ordinal_position`,
	foreignKeysQuery: `
		SELECT tc.table_name, kcu.column_name, ccu.table_name AS ref_table,
		       ccu.column_name AS ref_column, tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public'
		ORDER BY tc.table_name`,
}

var mysqlDialect = dialect{
	tablesQuery: `
		SELECT table_name AS table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	columnsQuery: `
		SELECT table_name AS table_name, column_name AS column_name,
		       data_type AS data_type, (is_nullable = 'YES') AS nullable
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		ORDER BY table_name, ordinal_position`,
	keysQuery: `
		SELECT tc.table_name AS table_name, kcu.column_name AS column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = DATABASE()
		ORDER BY tc.table_name, kcu.ordinal_position`,
	foreignKeysQuery: `
		SELECT table_name AS table_name, column_name AS column_name,
		       referenced_table_name AS ref_table, referenced_column_name AS ref_column,
		       constraint_name AS constraint_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND referenced_table_name IS NOT NULL
		ORDER BY table_name`,
}
