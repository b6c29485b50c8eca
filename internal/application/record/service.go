// Package record serves the keyed records of the catalog: daily logs and
// singleton settings that are written whole rather than reordered.
package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jyl/universe/internal/catalog"
	"github.com/jyl/universe/internal/domain"
)

// List limits.
const (
	DefaultListLimit = 30
	MaxListLimit     = 366
)

// Service validates record writes against the catalog and forwards them to
// the store. Writes are serialized so a patch never races another write.
type Service struct {
	catalog *catalog.Catalog
	stores  StoreProvider
	mu      sync.Mutex
}

// NewService creates a record service.
func NewService(cat *catalog.Catalog, stores StoreProvider) *Service {
	return &Service{catalog: cat, stores: stores}
}

// Sets returns the record sets of the catalog.
func (s *Service) Sets() []*domain.RecordSet {
	return s.catalog.RecordSets()
}

func (s *Service) open(name, key string) (*domain.RecordSet, string, error) {
	set, err := s.catalog.RecordSet(name)
	if err != nil {
		return nil, "", err
	}
	key, err = set.NormalizeKey(key)
	if err != nil {
		return nil, "", err
	}
	return set, key, nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, name, key string) (*domain.RecordSet, domain.Record, error) {
	set, key, err := s.open(name, key)
	if err != nil {
		return nil, domain.Record{}, err
	}
	rec, err := s.stores.Records(set).Get(ctx, key)
	return set, rec, err
}

// Put replaces the record under key. Columns missing from fields take
// their defaults.
func (s *Service) Put(ctx context.Context, name, key string, fields domain.Fields) (*domain.RecordSet, domain.Record, error) {
	set, key, err := s.open(name, key)
	if err != nil {
		return nil, domain.Record{}, err
	}
	fields, err = set.NewRecordFields(fields)
	if err != nil {
		return nil, domain.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, set, domain.Record{Key: key, Fields: fields})
}

// Patch merges fields onto the stored record, or onto the defaults when
// none is stored yet.
func (s *Service) Patch(ctx context.Context, name, key string, patch domain.Fields) (*domain.RecordSet, domain.Record, error) {
	set, key, err := s.open(name, key)
	if err != nil {
		return nil, domain.Record{}, err
	}
	patch, err = set.NormalizePatch(patch)
	if err != nil {
		return nil, domain.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.stores.Records(set)
	current, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		if current.Fields, err = set.NewRecordFields(nil); err != nil {
			return nil, domain.Record{}, err
		}
	case err != nil:
		return nil, domain.Record{}, fmt.Errorf("failed to read %s/%s: %w", set.Name, key, err)
	}
	return s.put(ctx, set, domain.Record{Key: key, Fields: current.Fields.Merge(patch)})
}

func (s *Service) put(ctx context.Context, set *domain.RecordSet, rec domain.Record) (*domain.RecordSet, domain.Record, error) {
	stored, err := s.stores.Records(set).Put(ctx, rec)
	if err != nil {
		return nil, domain.Record{}, fmt.Errorf("failed to write %s/%s: %w", set.Name, rec.Key, err)
	}
	slog.DebugContext(ctx, "record written", "set", set.Name, "key", rec.Key)
	return set, stored, nil
}

// Delete removes one record. Absent records are not an error.
func (s *Service) Delete(ctx context.Context, name, key string) error {
	set, key, err := s.open(name, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stores.Records(set).Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", set.Name, key, err)
	}
	return nil
}

// List returns the newest records of a set. limit <= 0 means
// DefaultListLimit; larger limits are clamped to MaxListLimit.
func (s *Service) List(ctx context.Context, name string, limit int) (*domain.RecordSet, []domain.Record, error) {
	set, err := s.catalog.RecordSet(name)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	recs, err := s.stores.Records(set).List(ctx, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list %s: %w", set.Name, err)
	}
	return set, recs, nil
}
