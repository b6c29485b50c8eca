package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jyl/universe/internal/catalog"
	"github.com/jyl/universe/internal/domain"
)

type listKey struct {
	collection string
	scope      string
}

// Hub owns one Manager per (collection, scope) pair. Managers are created on
// first use and live until Shutdown.
type Hub struct {
	catalog *catalog.Catalog
	stores  StoreProvider
	cfg     Config
	ctx     context.Context
	tel     *telemetry

	mu       sync.Mutex
	managers map[listKey]*Manager
	closed   bool
}

// NewHub creates a hub. ctx carries values (not cancellation) into the row
// store calls of every manager.
func NewHub(ctx context.Context, cat *catalog.Catalog, stores StoreProvider, cfg Config) *Hub {
	return &Hub{
		catalog:  cat,
		stores:   stores,
		cfg:      cfg,
		ctx:      context.WithoutCancel(ctx),
		tel:      newTelemetry(),
		managers: map[listKey]*Manager{},
	}
}

// Catalog returns the collections served by the hub.
func (h *Hub) Catalog() *catalog.Catalog {
	return h.catalog
}

// Manager returns the manager of one list, creating it if needed.
func (h *Hub) Manager(collection, scope string) (*Manager, error) {
	coll, err := h.catalog.Get(collection)
	if err != nil {
		return nil, err
	}
	if err := coll.ValidateScope(scope); err != nil {
		return nil, err
	}

	key := listKey{collection: coll.Name, scope: scope}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, domain.ErrClosed
	}
	if m, ok := h.managers[key]; ok {
		return m, nil
	}

	m, err := newManager(h.ctx, coll, scope, h.stores.Rows(coll), h.cfg, h.tel)
	if err != nil {
		return nil, err
	}
	h.managers[key] = m

	slog.DebugContext(h.ctx, "list manager started",
		slog.String("collection", coll.Name),
		slog.String("scope", scope))

	return m, nil
}

// Shutdown stops every manager after its queued row store calls finish.
// New Manager calls fail with domain.ErrClosed once shutdown begins.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	managers := make([]*Manager, 0, len(h.managers))
	for _, m := range h.managers {
		managers = append(managers, m)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, len(managers))
	for i, m := range managers {
		wg.Go(func() {
			if err := m.Shutdown(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", m.name, err)
			}
		})
	}
	wg.Wait()

	return errors.Join(errs...)
}
