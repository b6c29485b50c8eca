// Package snapshot exports collection lists from the row store into a sink
// and schedules periodic exports.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jyl/universe/internal/application/collection"
	"github.com/jyl/universe/internal/catalog"
	"github.com/jyl/universe/internal/domain"
)

// Service takes snapshots of collection lists as stored, not as cached by
// a list manager.
type Service struct {
	catalog *catalog.Catalog
	stores  collection.StoreProvider
	sink    Sink
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the clock used for snapshot ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a snapshot service.
func NewService(cat *catalog.Catalog, stores collection.StoreProvider, sink Sink, opts ...Option) *Service {
	s := &Service{
		catalog: cat,
		stores:  stores,
		sink:    sink,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export reads one list from the row store and writes it to the sink.
func (s *Service) Export(ctx context.Context, name, scope string) (*domain.Snapshot, error) {
	coll, err := s.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	if err := coll.ValidateScope(scope); err != nil {
		return nil, err
	}

	rows, err := s.stores.Rows(coll).List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", coll.Name, err)
	}

	takenAt := s.now().UTC()
	snap := &domain.Snapshot{
		SnapshotInfo: domain.SnapshotInfo{
			ID:         ulid.MustNew(ulid.Timestamp(takenAt), ulid.DefaultEntropy()).String(),
			Collection: coll.Name,
			Scope:      scope,
			TakenAt:    takenAt,
			RowCount:   len(rows),
		},
		Rows: make([]domain.SnapshotRow, len(rows)),
	}
	for i, r := range rows {
		snap.Rows[i] = domain.SnapshotRow{
			ID:        r.ID,
			Position:  r.Position,
			Fields:    r.Fields,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
	}

	if err := s.sink.Put(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to store snapshot of %s: %w", coll.Name, err)
	}

	slog.InfoContext(ctx, "Snapshot exported",
		"snapshot_id", snap.ID,
		"collection", coll.Name,
		"scope", scope,
		"rows", snap.RowCount)
	return snap, nil
}

// ExportAll exports every list of every collection. A failed list does not
// stop the others; the joined error reports all failures.
func (s *Service) ExportAll(ctx context.Context) ([]domain.SnapshotInfo, error) {
	var (
		infos []domain.SnapshotInfo
		errs  []error
	)
	for _, coll := range s.catalog.All() {
		for _, scope := range catalog.Scopes(coll) {
			if err := ctx.Err(); err != nil {
				return infos, errors.Join(append(errs, err)...)
			}
			snap, err := s.Export(ctx, coll.Name, scope)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			infos = append(infos, snap.SnapshotInfo)
		}
	}
	return infos, errors.Join(errs...)
}

// List returns the stored snapshots, newest first.
func (s *Service) List(ctx context.Context) ([]domain.SnapshotInfo, error) {
	infos, err := s.sink.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	SortNewestFirst(infos)
	return infos, nil
}

// Get returns one stored snapshot.
func (s *Service) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return s.sink.Get(ctx, id)
}
