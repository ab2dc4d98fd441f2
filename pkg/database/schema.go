package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

// schemaTTL is how long a dumped schema stays fresh before the next read
// triggers a refresh.
const schemaTTL = 5 * time.Minute

type schemaEntry struct {
	tables    map[string]state.TableSchema
	fetchedAt time.Time
}

// Column dump queries per engine. Every query returns the same five columns:
// table name, column name, data type, nullable flag, comment.
const (
	postgresColumnsQuery = `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable,
       COALESCE(pg_catalog.col_description(
           (quote_ident(c.table_schema) || '.' || quote_ident(c.table_name))::regclass,
           c.ordinal_position), '')
FROM information_schema.columns c
WHERE c.table_schema = current_schema()
ORDER BY c.table_name, c.ordinal_position`

	mysqlColumnsQuery = `
SELECT table_name, column_name, data_type, is_nullable, column_comment
FROM information_schema.columns
WHERE table_schema = DATABASE()
ORDER BY table_name, ordinal_position`

	mssqlColumnsQuery = `
SELECT table_name, column_name, data_type, is_nullable, ''
FROM information_schema.columns
WHERE table_catalog = DB_NAME()
ORDER BY table_name, ordinal_position`

	oracleColumnsQuery = `
SELECT t.table_name, t.column_name, t.data_type, t.nullable, NVL(c.comments, '')
FROM user_tab_columns t
LEFT JOIN user_col_comments c
  ON c.table_name = t.table_name AND c.column_name = t.column_name
ORDER BY t.table_name, t.column_id`
)

// Schema returns the table schemas of the named database. Dumps are cached
// for schemaTTL; concurrent refreshes of the same database collapse into a
// single driver round-trip.
func (m *Manager) Schema(ctx context.Context, name string) (map[string]state.TableSchema, error) {
	if tables, ok := m.cachedSchema(name); ok {
		return tables, nil
	}

	v, err, _ := m.group.Do(name, func() (any, error) {
		// A caller that raced the winning flight lands here after the cache
		// was already filled.
		if tables, ok := m.cachedSchema(name); ok {
			return tables, nil
		}

		tables, err := m.dumpSchema(ctx, name)
		if err != nil {
			return nil, err
		}

		m.cacheMu.Lock()
		m.cache[name] = &schemaEntry{tables: tables, fetchedAt: m.now()}
		m.cacheMu.Unlock()
		return tables, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]state.TableSchema), nil
}

func (m *Manager) cachedSchema(name string) (map[string]state.TableSchema, bool) {
	m.cacheMu.RLock()
	entry, ok := m.cache[name]
	m.cacheMu.RUnlock()
	if !ok || m.now().Sub(entry.fetchedAt) >= schemaTTL {
		return nil, false
	}
	return entry.tables, true
}

// DumpAll dumps every configured database and merges the tables into one
// view. The returned mapping records which database owns each table name; on
// a collision the first database in sorted order wins and the loser is
// logged. Per-database failures land in the error map and the rest of the
// dump proceeds.
func (m *Manager) DumpAll(ctx context.Context) (map[string]state.TableSchema, map[string]string, map[string]error) {
	merged := make(map[string]state.TableSchema)
	mapping := make(map[string]string)
	errs := make(map[string]error)

	for _, name := range m.Names() {
		tables, err := m.Schema(ctx, name)
		if err != nil {
			errs[name] = err
			continue
		}

		tableNames := make([]string, 0, len(tables))
		for table := range tables {
			tableNames = append(tableNames, table)
		}
		sort.Strings(tableNames)

		for _, table := range tableNames {
			if owner, exists := mapping[table]; exists {
				m.logger.Warn("table name collides across databases",
					"table", table, "kept", owner, "ignored", name)
				continue
			}
			merged[table] = tables[table]
			mapping[table] = name
		}
	}

	return merged, mapping, errs
}

func (m *Manager) dumpSchema(ctx context.Context, name string) (map[string]state.TableSchema, error) {
	cfg, ok := m.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatabase, name)
	}
	db, err := m.pool(name)
	if err != nil {
		return nil, err
	}

	switch cfg.Type {
	case config.DatabaseTypePostgreSQL:
		return dumpColumns(ctx, db, postgresColumnsQuery)
	case config.DatabaseTypeMySQL:
		return dumpColumns(ctx, db, mysqlColumnsQuery)
	case config.DatabaseTypeMSSQL:
		return dumpColumns(ctx, db, mssqlColumnsQuery)
	case config.DatabaseTypeOracle:
		return dumpColumns(ctx, db, oracleColumnsQuery)
	case config.DatabaseTypeSQLite:
		return dumpSQLiteSchema(ctx, db)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDatabaseType, cfg.Type)
	}
}

func dumpColumns(ctx context.Context, db *sql.DB, query string) (map[string]state.TableSchema, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dump columns: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]state.TableSchema)
	for rows.Next() {
		var table, column, dataType, nullable, comment string
		if err := rows.Scan(&table, &column, &dataType, &nullable, &comment); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}

		schema := tables[table]
		schema.Columns = append(schema.Columns, state.Column{
			Name:     column,
			Type:     dataType,
			Nullable: isNullable(nullable),
			Comment:  comment,
		})
		tables[table] = schema
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return tables, nil
}

// dumpSQLiteSchema walks sqlite_master and asks PRAGMA table_info for each
// table. sqlite has no information_schema.
func dumpSQLiteSchema(ctx context.Context, db *sql.DB) (map[string]state.TableSchema, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list sqlite tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sqlite table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate sqlite tables: %w", err)
	}
	rows.Close()

	tables := make(map[string]state.TableSchema)
	for _, table := range names {
		schema, err := dumpSQLiteTable(ctx, db, table)
		if err != nil {
			return nil, err
		}
		tables[table] = schema
	}
	return tables, nil
}

func dumpSQLiteTable(ctx context.Context, db *sql.DB, table string) (state.TableSchema, error) {
	cols, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return state.TableSchema{}, fmt.Errorf("table_info %q: %w", table, err)
	}
	defer cols.Close()

	var schema state.TableSchema
	for cols.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := cols.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return state.TableSchema{}, fmt.Errorf("scan table_info row for %q: %w", table, err)
		}
		schema.Columns = append(schema.Columns, state.Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0,
		})
	}
	if err := cols.Err(); err != nil {
		return state.TableSchema{}, fmt.Errorf("iterate table_info rows for %q: %w", table, err)
	}
	return schema, nil
}

// isNullable folds the engine-specific nullable spellings into a bool.
func isNullable(raw string) bool {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "YES", "Y", "1", "TRUE":
		return true
	default:
		return false
	}
}
