package collection

import (
	"context"

	"github.com/jyl/universe/internal/domain"
)

// RowStore is the persistence contract for one collection table.
// The store is the durable source of truth; every call is a single
// round trip and ids are assigned by the store on insert.
type RowStore interface {
	// List returns the rows of a scope ordered by position ascending, ties
	// broken by insertion order. scope is "" for unscoped collections.
	List(ctx context.Context, scope string) ([]domain.Row, error)

	// Insert stores a new row and returns it with its assigned id and timestamps.
	// The ID of the given row is ignored.
	Insert(ctx context.Context, row domain.Row) (domain.Row, error)

	// UpdateFields sets the given payload columns of one row.
	// Updating an absent id is a silent no-op.
	UpdateFields(ctx context.Context, id string, fields domain.Fields) error

	// DeleteByID removes one row. Deleting an absent id is a silent no-op.
	DeleteByID(ctx context.Context, id string) error

	// UpsertMany writes id, position, scope and payload of every row in a
	// single atomic statement, inserting rows whose id is absent.
	UpsertMany(ctx context.Context, rows []domain.Row) error
}

// StoreProvider hands out the RowStore of a collection.
type StoreProvider interface {
	Rows(coll *domain.Collection) RowStore
}
