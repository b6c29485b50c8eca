package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jyl/universe/internal/application/auth"
	"github.com/jyl/universe/internal/application/collection"
	"github.com/jyl/universe/internal/application/record"
	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/persistence/rowsql"
)

// querier is the subset of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides the PostgreSQL implementation of the repositories.
//
// This store implements:
// - application/auth.Repository (API keys and sessions)
// - application/collection.StoreProvider (one RowTable per collection table)
// - application/record.StoreProvider (one RecordTable per record set)
type Store struct {
	pool *pgxpool.Pool
	q    querier

	mu      sync.Mutex
	tables  map[string]*RowTable
	records map[string]*RecordTable
}

// Compile-time verification that Store implements the repository interfaces.
var (
	_ auth.Repository          = (*Store)(nil)
	_ collection.StoreProvider = (*Store)(nil)
	_ collection.RowStore      = (*RowTable)(nil)
	_ record.StoreProvider     = (*Store)(nil)
	_ record.Store             = (*RecordTable)(nil)
)

// NewStore creates a new PostgreSQL store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:    pool,
		q:       pool,
		tables:  map[string]*RowTable{},
		records: map[string]*RecordTable{},
	}
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	s.pool.Close()
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
	t := &RowTable{store: s, table: rowsql.NewTable(rowsql.Postgres, coll)}
	s.tables[coll.Name] = t
	return t
}

// finalizeTx handles transaction cleanup for normal error/success cases.
// Rolls back on error, commits on success.
// Panics are handled in the deferred block before finalizeTx is called.
func finalizeTx(ctx context.Context, tx pgx.Tx, err *error) {
	if *err != nil {
		slog.ErrorContext(ctx, "transaction failed, rolling back",
			"error", *err)
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.ErrorContext(ctx, "rollback failed",
				"original_error", *err,
				"rollback_error", rbErr)
			*err = fmt.Errorf("transaction failed: %w (rollback error: %v)", *err, rbErr)
		}
	} else {
		*err = tx.Commit(ctx)
		if *err != nil {
			slog.ErrorContext(ctx, "transaction commit failed",
				"error", *err)
		}
	}
}

// executeInTransaction runs fn against a store bound to one transaction,
// with logging and panic recovery.
func (s *Store) executeInTransaction(ctx context.Context, operationName string, fn func(txStore *Store) error) (err error) {
	start := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to begin transaction",
			"operation", operationName,
			"error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "transaction panic, rolling back",
				"operation", operationName,
				"panic", p)
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.ErrorContext(ctx, "rollback after panic failed",
					"operation", operationName,
					"panic", p,
					"rollback_error", rbErr)
			}
			panic(p)
		}

		finalizeTx(ctx, tx, &err)
		if err == nil {
			slog.DebugContext(ctx, "transaction completed",
				"operation", operationName,
				"duration_ms", time.Since(start).Milliseconds())
		}
	}()

	err = fn(&Store{pool: s.pool, q: tx})
	return
}
