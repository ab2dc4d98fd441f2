// Package database manages every configured database behind one Manager:
// lazily opened database/sql pools per engine, dialect-aware schema dumps
// with a TTL cache, and concurrent query fan-out across databases.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	// Drivers for every supported engine register themselves here.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/sijms/go-ora/v2"

	"github.com/datanaut-ai/datanaut/pkg/config"
	"github.com/datanaut-ai/datanaut/pkg/state"
	"golang.org/x/sync/singleflight"
)

// Connection pool settings shared by every managed database.
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
	connMaxIdleTime = 5 * time.Minute
)

// Manager owns one lazily opened *sql.DB per configured database plus the
// schema cache shared by the orchestration nodes. All methods are safe for
// concurrent use.
type Manager struct {
	configs map[string]*config.DatabaseConfig
	logger  *slog.Logger

	mu    sync.Mutex
	pools map[string]*sql.DB

	cacheMu sync.RWMutex
	cache   map[string]*schemaEntry
	group   singleflight.Group

	// now is replaceable in tests to step the schema cache clock.
	now func() time.Time
}

// NewManager builds a manager over the given database set. Pools open on
// first use, so an unreachable database fails at query time rather than at
// startup.
func NewManager(configs map[string]*config.DatabaseConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	copied := make(map[string]*config.DatabaseConfig, len(configs))
	for name, cfg := range configs {
		copied[name] = cfg
	}
	return &Manager{
		configs: copied,
		logger:  logger,
		pools:   make(map[string]*sql.DB),
		cache:   make(map[string]*schemaEntry),
		now:     time.Now,
	}
}

// Names returns the configured database names in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns how many databases are configured.
func (m *Manager) Len() int {
	return len(m.configs)
}

// pool returns the open pool for name, opening it on first use.
func (m *Manager) pool(name string) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.pools[name]; ok {
		return db, nil
	}

	cfg, ok := m.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatabase, name)
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, fmt.Errorf("build DSN for %q: %w", name, err)
	}

	db, err := sql.Open(cfg.Type.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", name, err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	m.pools[name] = db
	return db, nil
}

// Query runs one read query against the named database and returns the rows
// as maps keyed by column name. Byte-slice values are converted to strings
// so results serialize as text instead of base64.
func (m *Manager) Query(ctx context.Context, name, query string) ([]map[string]any, error) {
	db, err := m.pool(name)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query database %q: %w", name, err)
	}
	defer rows.Close()

	return collectRows(rows)
}

// QueryAll fans the query out to every listed database concurrently. Rows
// and errors are collected per database; one database failing does not
// disturb its siblings.
func (m *Manager) QueryAll(ctx context.Context, names []string, query string) (map[string][]map[string]any, map[string]error) {
	results := make(map[string][]map[string]any)
	errs := make(map[string]error)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			rows, err := m.Query(ctx, name, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[name] = err
				return
			}
			results[name] = rows
		}(name)
	}
	wg.Wait()

	return results, errs
}

// Close closes every pool that was opened. The manager is unusable after.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, db := range m.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close database %q: %w", name, err)
		}
		delete(m.pools, name)
	}
	return firstErr
}

// Flatten merges per-database result sets into one slice, tagging every row
// with the database it came from. Databases are visited in sorted name order
// so the merged slice is deterministic. Input rows are copied, not mutated.
func Flatten(all map[string][]map[string]any) []map[string]any {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	var merged []map[string]any
	for _, name := range names {
		for _, row := range all[name] {
			tagged := make(map[string]any, len(row)+1)
			for k, v := range row {
				tagged[k] = v
			}
			tagged[state.SourceDatabaseKey] = name
			merged = append(merged, tagged)
		}
	}
	return merged
}

func collectRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}
	return out, nil
}

// normalizeValue folds driver-specific scan types into JSON-friendly ones.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
