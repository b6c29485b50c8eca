// Package sqlite is the embedded row store: one database file (or a shared
// in-memory database) accessed through modernc.org/sqlite, a cgo-free driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/jyl/universe/internal/application/auth"
	"github.com/jyl/universe/internal/application/collection"
	"github.com/jyl/universe/internal/application/record"
	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/persistence/rowsql"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides the SQLite implementation of the repositories.
//
// This store implements:
// - application/auth.Repository (API keys and sessions)
// - application/collection.StoreProvider (one RowTable per collection table)
// - application/record.StoreProvider (one RecordTable per record set)
type Store struct {
	db *sql.DB
	q  querier

	mu      sync.Mutex
	tables  map[string]*RowTable
	records map[string]*RecordTable
}

var (
	_ auth.Repository          = (*Store)(nil)
	_ collection.StoreProvider = (*Store)(nil)
	_ collection.RowStore      = (*RowTable)(nil)
	_ record.StoreProvider     = (*Store)(nil)
	_ record.Store             = (*RecordTable)(nil)
)

// Open opens the database at dsn (a file path or a "file:" URI) with
// foreign keys enforced. SQLite allows one writer, so the pool holds a
// single connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &Store{db: db, q: db, tables: map[string]*RowTable{}, records: map[string]*RecordTable{}}, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrations() (*goose.Provider, error) {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// Migrate applies pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	provider, err := s.migrations()
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		slog.InfoContext(ctx, "applied migration",
			slog.String("source", r.Source.Path),
			slog.Duration("duration", r.Duration))
	}
	return nil
}

// MigrationStatus writes the applied state of every migration to w.
func (s *Store) MigrationStatus(ctx context.Context, w io.Writer) error {
	provider, err := s.migrations()
	if err != nil {
		return err
	}
	statuses, err := provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	for _, st := range statuses {
		applied := "pending"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%-40s %s\n", st.Source.Path, applied)
	}
	return nil
}

// Rows returns the row store of a collection table.
func (s *Store) Rows(coll *domain.Collection) collection.RowStore {
	return s.RowTable(coll)
}

// RowTable returns the concrete row store of a collection table.
func (s *Store) RowTable(coll *domain.Collection) *RowTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tables[coll.Name]; ok {
		return t
	}
	t := &RowTable{store: s, table: rowsql.NewTable(rowsql.SQLite, coll)}
	s.tables[coll.Name] = t
	return t
}

// executeInTransaction runs fn against a store bound to one transaction.
func (s *Store) executeInTransaction(ctx context.Context, operationName string, fn func(txStore *Store) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.ErrorContext(ctx, "rollback failed",
					"operation", operationName,
					"original_error", err,
					"rollback_error", rbErr)
			}
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("failed to commit %s: %w", operationName, err)
		}
	}()

	err = fn(&Store{db: s.db, q: tx})
	return
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return id.String(), nil
}
