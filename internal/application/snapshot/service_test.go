package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/catalog"
	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/persistence/memory"
)

// memorySink keeps snapshots in a map and can be told to fail.
type memorySink struct {
	mu    sync.Mutex
	snaps map[string]*domain.Snapshot
	err   error
}

func newMemorySink() *memorySink {
	return &memorySink{snaps: map[string]*domain.Snapshot{}}
}

func (m *memorySink) Put(_ context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.snaps[snap.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.snaps[snap.ID] = snap
	return nil
}

func (m *memorySink) Get(_ context.Context, id string) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, id)
	}
	return snap, nil
}

func (m *memorySink) List(context.Context) ([]domain.SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]domain.SnapshotInfo, 0, len(m.snaps))
	for _, s := range m.snaps {
		infos = append(infos, s.SnapshotInfo)
	}
	return infos, nil
}

func seedTodos(t *testing.T, store *memory.Store, texts ...string) {
	t.Helper()
	coll, err := catalog.MustDefault().Get("todos")
	require.NoError(t, err)
	for i, text := range texts {
		fields, err := coll.NewRowFields(domain.Fields{"text": text})
		require.NoError(t, err)
		_, err = store.Rows(coll).Insert(context.Background(), domain.Row{Position: i, Fields: fields})
		require.NoError(t, err)
	}
}

func TestExport(t *testing.T) {
	store := memory.NewStore()
	seedTodos(t, store, "a", "b", "c")
	sink := newMemorySink()
	taken := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	svc := NewService(catalog.MustDefault(), store, sink, WithClock(func() time.Time { return taken }))

	snap, err := svc.Export(context.Background(), "todos", "")
	require.NoError(t, err)

	id, err := ulid.ParseStrict(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(taken), id.Time(), "id carries the snapshot time")
	assert.Equal(t, "todos", snap.Collection)
	assert.Equal(t, taken, snap.TakenAt)
	assert.Equal(t, 3, snap.RowCount)
	for i, r := range snap.Rows {
		assert.Equal(t, i, r.Position)
	}
	assert.Equal(t, "a", snap.Rows[0].Fields["text"])

	stored, err := svc.Get(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap, stored)
}

func TestExportValidation(t *testing.T) {
	svc := NewService(catalog.MustDefault(), memory.NewStore(), newMemorySink())
	ctx := context.Background()

	_, err := svc.Export(ctx, "recipes", "")
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)

	_, err = svc.Export(ctx, "weekly_plan", "Someday")
	assert.ErrorIs(t, err, domain.ErrInvalidScope)

	_, err = svc.Export(ctx, "todos", "Mon")
	assert.ErrorIs(t, err, domain.ErrScopeNotSupported)
}

func TestExportSinkFailure(t *testing.T) {
	sink := newMemorySink()
	sink.err = errors.New("bucket unavailable")
	svc := NewService(catalog.MustDefault(), memory.NewStore(), sink)

	_, err := svc.Export(context.Background(), "todos", "")
	assert.ErrorIs(t, err, sink.err)
}

func TestExportAllCoversEveryList(t *testing.T) {
	cat := catalog.MustDefault()
	svc := NewService(cat, memory.NewStore(), newMemorySink())

	infos, err := svc.ExportAll(context.Background())
	require.NoError(t, err)

	want := 0
	for _, coll := range cat.All() {
		want += len(catalog.Scopes(coll))
	}
	assert.Len(t, infos, want)

	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, want)
	for i := 1; i < len(listed); i++ {
		assert.Greater(t, listed[i-1].ID, listed[i].ID, "newest first")
	}
}

func TestExportAllJoinsErrors(t *testing.T) {
	sink := newMemorySink()
	sink.err = errors.New("disk full")
	svc := NewService(catalog.MustDefault(), memory.NewStore(), sink)

	infos, err := svc.ExportAll(context.Background())
	assert.Empty(t, infos)
	assert.ErrorIs(t, err, sink.err)
}

func TestGetRejectsMalformedID(t *testing.T) {
	svc := NewService(catalog.MustDefault(), memory.NewStore(), newMemorySink())

	_, err := svc.Get(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.Get(context.Background(), ulid.Make().String())
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}
