// Package state persists labs, projects and samples in SQLite or PostgreSQL.
// Schema changes are applied with goose from embedded migrations.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bmh-lims/lims/pkg/core"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

// Config selects and locates the backing database.
type Config struct {
	Dialect Dialect
	// DSN is a file path (or ":memory:") for SQLite and a connection string for PostgreSQL.
	DSN    string
	Logger *slog.Logger
}

// SQLStore implements core.Store over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	clock   func() time.Time
	logger  *slog.Logger
}

var _ core.Store = (*SQLStore)(nil)

// Open connects to the database described by cfg and verifies the connection.
// Migrations are not applied; call Migrate.
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	dialect := cfg.Dialect
	if dialect == "" {
		dialect = DialectSQLite
	}
	if err := dialect.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.driverName(), dialect.dsn(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// A single connection serializes writers and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	s := NewWithDB(db, dialect, cfg.Logger)
	s.logger.Debug("database opened", "dialect", string(dialect))
	return s, nil
}

// NewWithDB wraps an existing connection.
func NewWithDB(db *sql.DB, dialect Dialect, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		clock:   func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// DB returns the underlying connection.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect of the store.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) checkOpen() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

// inClause returns "?, ?, ?" and the matching arguments for names.
func inClause(names []string) (string, []any) {
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "), args
}
