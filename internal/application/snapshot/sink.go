package snapshot

import (
	"context"

	"github.com/jyl/universe/internal/domain"
)

// Sink stores exported snapshots.
//
// Implementations:
//   - infrastructure/snapshot/fs (local directory)
//   - infrastructure/snapshot/gcs (Google Cloud Storage bucket)
type Sink interface {
	// Put writes a snapshot. Writing an id twice returns domain.ErrAlreadyExists.
	Put(ctx context.Context, snap *domain.Snapshot) error

	// Get reads a snapshot by id. Unknown ids return domain.ErrSnapshotNotFound.
	Get(ctx context.Context, id string) (*domain.Snapshot, error)

	// List returns every stored snapshot, newest first.
	List(ctx context.Context) ([]domain.SnapshotInfo, error)
}
