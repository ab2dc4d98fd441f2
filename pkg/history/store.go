// Package history persists completed query runs to PostgreSQL for audit.
// Migration files are embedded into the binary and applied on Open, so a
// deployment needs nothing beyond a reachable database.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
)

//go:embed migrations
var migrationsFS embed.FS

const (
	maxOpenConns    = 5
	maxIdleConns    = 2
	connMaxLifetime = 30 * time.Minute
)

// Run is the audit record of one completed query run.
type Run struct {
	ID            string        `json:"id"`
	Request       string        `json:"request"`
	DatabaseName  string        `json:"database_name,omitempty"`
	SQLQueries    []string      `json:"sql_queries"`
	RowCount      int           `json:"row_count"`
	ServiceCalls  int           `json:"service_calls"`
	DocumentCount int           `json:"document_count"`
	FinalResponse string        `json:"final_response"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	Duration      time.Duration `json:"duration"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Store writes and reads run records.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the database, applies pending migrations and returns a
// ready store.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}

	logger.Info("History store ready")
	return &Store{db: db, logger: logger.With("component", "history")}, nil
}

// NewFromDB wraps an existing connection without running migrations.
// Useful for tests.
func NewFromDB(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "history")}
}

// runMigrations applies embedded migrations. ErrNoChange means the schema
// is already current.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "history", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Close only the source. m.Close() would also close the database driver,
	// taking the shared *sql.DB down with it.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("close migration source: %w", err)
	}
	return nil
}

const insertRun = `
	INSERT INTO runs (id, request, database_name, sql_queries, row_count,
		service_calls, document_count, final_response, error_kind,
		duration_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Record persists one completed run. A missing ID or timestamp is filled in.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.SQLQueries == nil {
		run.SQLQueries = []string{}
	}

	queries, err := json.Marshal(run.SQLQueries)
	if err != nil {
		return fmt.Errorf("marshal sql queries: %w", err)
	}

	_, err = s.db.ExecContext(ctx, insertRun,
		run.ID, run.Request, run.DatabaseName, queries, run.RowCount,
		run.ServiceCalls, run.DocumentCount, run.FinalResponse, run.ErrorKind,
		run.Duration.Milliseconds(), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	s.logger.Debug("Run recorded", "run_id", run.ID, "rows", run.RowCount)
	return nil
}

const selectRecent = `
	SELECT id, request, database_name, sql_queries, row_count, service_calls,
		document_count, final_response, error_kind, duration_ms, created_at
	FROM runs
	ORDER BY created_at DESC
	LIMIT $1`

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			queries    []byte
			durationMs int64
		)
		if err := rows.Scan(&run.ID, &run.Request, &run.DatabaseName, &queries,
			&run.RowCount, &run.ServiceCalls, &run.DocumentCount,
			&run.FinalResponse, &run.ErrorKind, &durationMs, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal(queries, &run.SQLQueries); err != nil {
			return nil, fmt.Errorf("unmarshal sql queries for run %s: %w", run.ID, err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const deleteOldRuns = `DELETE FROM runs WHERE created_at < $1`

// PruneOlderThan deletes runs recorded before the cutoff and returns how
// many were removed.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, deleteOldRuns, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count pruned runs: %w", err)
	}
	return removed, nil
}

// Ping reports whether the store's database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
