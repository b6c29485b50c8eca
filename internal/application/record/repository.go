package record

import (
	"context"

	"github.com/jyl/universe/internal/domain"
)

// Store is the persistence contract for one record set table.
type Store interface {
	// Get returns the record stored under key or domain.ErrRecordNotFound.
	Get(ctx context.Context, key string) (domain.Record, error)

	// Put inserts or replaces the record under rec.Key in one statement.
	// A replaced record keeps its created_at.
	Put(ctx context.Context, rec domain.Record) (domain.Record, error)

	// Delete removes one record. Deleting an absent key is a silent no-op.
	Delete(ctx context.Context, key string) error

	// List returns up to limit records ordered by key descending.
	List(ctx context.Context, limit int) ([]domain.Record, error)
}

// StoreProvider hands out the Store of a record set.
type StoreProvider interface {
	Records(set *domain.RecordSet) Store
}
