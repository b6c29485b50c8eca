package collection

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/domain"
)

func scenarioStore() *fakeStore {
	return newFakeStore(taskRow("1", 0, "x"), taskRow("2", 1, "y"), taskRow("3", 2, "z"))
}

func TestManager_LoadOrdersByPosition(t *testing.T) {
	store := newFakeStore(taskRow("b", 1, "second"), taskRow("a", 0, "first"), taskRow("c", 2, "third"))
	m := newTestManager(t, store)

	v, err := m.View(t.Context())
	require.NoError(t, err)

	assert.Equal(t, StatusReady, v.Status)
	assert.Equal(t, []string{"a", "b", "c"}, viewIDs(v))
	assert.Equal(t, 1, store.count("List"))
}

func TestManager_FailedFirstLoadStaysLoading(t *testing.T) {
	store := scenarioStore()
	store.failNext("List", errStoreDown)

	m, err := NewManager(t.Context(), tasksCollection(), "", store, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	err = m.Load(t.Context())
	require.ErrorIs(t, err, errStoreDown)

	_, _, err = m.Insert(t.Context(), domain.Fields{"title": "New"})
	assert.ErrorIs(t, err, domain.ErrNotReady)
	_, err = m.Reorder(t.Context(), 0, 1)
	assert.ErrorIs(t, err, domain.ErrNotReady)

	// View retries the load.
	v, err := m.View(t.Context())
	require.NoError(t, err)
	assert.Equal(t, StatusReady, v.Status)
	assert.Len(t, v.Rows, 3)
}

func TestManager_ViewReportsLoadingWhenStoreIsDown(t *testing.T) {
	store := scenarioStore()
	store.failNext("List", errStoreDown)

	m, err := NewManager(t.Context(), tasksCollection(), "", store, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	v, err := m.View(t.Context())
	require.NoError(t, err)
	assert.Equal(t, StatusLoading, v.Status)
	assert.Empty(t, v.Rows)
}

func TestManager_ReorderScenarioA(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	applied, err := m.Reorder(t.Context(), 0, 2)
	require.NoError(t, err)
	assert.True(t, applied)

	// Local list is updated before the store call completes.
	v, err := m.View(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3", "1"}, viewIDs(v))
	assert.Equal(t, []int{0, 1, 2}, viewPositions(v))

	waitIdle(t, m)
	stored := store.stored("")
	assert.Equal(t, []string{"2", "3", "1"}, storedIDs(stored))
	assert.Equal(t, []int{0, 1, 2}, []int{stored[0].Position, stored[1].Position, stored[2].Position})
	assert.Equal(t, 1, store.count("UpsertMany"), "one batched write per reorder")
}

func TestManager_ReorderSameIndexSendsNothing(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	applied, err := m.Reorder(t.Context(), 1, 1)
	require.NoError(t, err)
	assert.False(t, applied)

	waitIdle(t, m)
	assert.Zero(t, store.count("UpsertMany"))
}

func TestManager_ReorderOutOfRange(t *testing.T) {
	m := newTestManager(t, scenarioStore())

	_, err := m.Reorder(t.Context(), 0, 3)
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
}

func TestManager_InsertScenarioB(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	row, applied, err := m.Insert(t.Context(), domain.Fields{"title": "New"})
	require.NoError(t, err)
	require.True(t, applied)

	assert.Equal(t, 3, row.Position)
	assert.True(t, strings.HasPrefix(row.ID, placeholderPrefix))
	assert.Equal(t, false, row.Fields["done"], "defaults applied")

	v := waitIdle(t, m)
	require.Len(t, v.Rows, 4)
	assert.Equal(t, "4", v.Rows[3].ID, "store id replaces the placeholder")
	assert.Equal(t, 3, v.Rows[3].Position)

	stored := store.stored("")
	require.Len(t, stored, 4)
	assert.Equal(t, "New", stored[3].Fields["title"])
	assert.Equal(t, 3, stored[3].Position)
}

func TestManager_InsertIntoEmptyListStartsAtZero(t *testing.T) {
	m := newTestManager(t, newFakeStore())

	row, applied, err := m.Insert(t.Context(), domain.Fields{"title": "first"})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, 0, row.Position)
}

func TestManager_InsertBlankTitleIsNoOp(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	for _, title := range []any{"", "   ", nil} {
		_, applied, err := m.Insert(t.Context(), domain.Fields{"title": title})
		require.NoError(t, err)
		assert.False(t, applied)
	}

	v := waitIdle(t, m)
	assert.Len(t, v.Rows, 3)
	assert.Zero(t, store.count("Insert"))
}

func TestManager_InsertRejectsUnknownField(t *testing.T) {
	m := newTestManager(t, scenarioStore())

	_, _, err := m.Insert(t.Context(), domain.Fields{"title": "New", "position": float64(7)})
	assert.ErrorIs(t, err, domain.ErrUnknownField)
}

func TestManager_DeleteScenarioC(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	_, err := m.Reorder(t.Context(), 0, 2)
	require.NoError(t, err)

	applied, err := m.Delete(t.Context(), "2", true)
	require.NoError(t, err)
	require.True(t, applied)

	v := waitIdle(t, m)
	assert.Equal(t, []string{"3", "1"}, viewIDs(v))
	assert.Equal(t, []int{1, 2}, viewPositions(v), "gap is not closed by delete")

	stored := store.stored("")
	assert.Equal(t, []string{"3", "1"}, storedIDs(stored))
	assert.Equal(t, 1, stored[0].Position)
}

func TestManager_DeleteRequiresConfirmation(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	applied, err := m.Delete(t.Context(), "2", false)
	require.NoError(t, err)
	assert.False(t, applied)

	v := waitIdle(t, m)
	assert.Len(t, v.Rows, 3)
	assert.Zero(t, store.count("DeleteByID"))
}

func TestManager_DeleteUnknownRow(t *testing.T) {
	m := newTestManager(t, scenarioStore())

	_, err := m.Delete(t.Context(), "missing", true)
	assert.ErrorIs(t, err, domain.ErrRowNotFound)
}

func TestManager_ToggleSendsOnlyToggleColumn(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	row, err := m.Toggle(t.Context(), "2")
	require.NoError(t, err)
	assert.Equal(t, true, row.Fields["done"])
	assert.Equal(t, 1, row.Position, "toggle never moves a row")

	waitIdle(t, m)
	assert.Equal(t, []domain.Fields{{"done": true}}, store.Updates())

	row, err = m.Toggle(t.Context(), "2")
	require.NoError(t, err)
	assert.Equal(t, false, row.Fields["done"])
}

func TestManager_UpdateSendsChangedColumnsOnly(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	row, applied, err := m.Update(t.Context(), "1", domain.Fields{"title": "x", "note": "remember"})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "remember", row.Fields["note"])

	_, applied, err = m.Update(t.Context(), "1", domain.Fields{"note": "remember"})
	require.NoError(t, err)
	assert.True(t, applied)

	waitIdle(t, m)
	assert.Equal(t, []domain.Fields{{"note": "remember"}}, store.Updates())
}

func TestManager_UpdateBlankTitleIsNoOp(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	row, applied, err := m.Update(t.Context(), "1", domain.Fields{"title": "  "})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "x", row.Fields["title"])

	waitIdle(t, m)
	assert.Zero(t, store.count("UpdateFields"))
}

func TestManager_PendingSyncFlag(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	release := store.hold()
	t.Cleanup(release)

	_, err := m.Toggle(t.Context(), "1")
	require.NoError(t, err)

	v, err := m.View(t.Context())
	require.NoError(t, err)
	assert.True(t, v.Rows[0].PendingSync)
	assert.False(t, v.Rows[1].PendingSync)
	assert.Equal(t, 1, v.Sync.InFlight)

	release()
	v = waitIdle(t, m)
	for _, r := range v.Rows {
		assert.False(t, r.PendingSync, r.ID)
	}
}

func TestManager_PlaceholderResolvesAfterInsertLands(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	release := store.hold()
	t.Cleanup(release)

	row, _, err := m.Insert(t.Context(), domain.Fields{"title": "New"})
	require.NoError(t, err)
	placeholder := row.ID

	// Writes against the placeholder are queued behind the insert.
	_, err = m.Toggle(t.Context(), placeholder)
	require.NoError(t, err)
	_, _, err = m.Update(t.Context(), placeholder, domain.Fields{"note": "n"})
	require.NoError(t, err)

	release()
	v := waitIdle(t, m)
	require.Len(t, v.Rows, 4)
	assert.Equal(t, "4", v.Rows[3].ID)
	assert.Equal(t, true, v.Rows[3].Fields["done"])

	stored := store.stored("")
	assert.Equal(t, true, stored[3].Fields["done"])
	assert.Equal(t, "n", stored[3].Fields["note"])

	// The placeholder keeps working once the store id is known.
	row, err = m.Toggle(t.Context(), placeholder)
	require.NoError(t, err)
	assert.Equal(t, "4", row.ID)
	assert.Equal(t, false, row.Fields["done"])
}

func TestManager_DeleteBeforeInsertLands(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	release := store.hold()
	t.Cleanup(release)

	row, _, err := m.Insert(t.Context(), domain.Fields{"title": "short lived"})
	require.NoError(t, err)
	applied, err := m.Delete(t.Context(), row.ID, true)
	require.NoError(t, err)
	require.True(t, applied)

	release()
	v := waitIdle(t, m)
	assert.Len(t, v.Rows, 3)
	assert.Len(t, store.stored(""), 3)
	assert.Equal(t, 0, v.Sync.Failures)
}

func TestManager_StoreCallsRunInDispatchOrder(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	release := store.hold()
	t.Cleanup(release)

	_, _, err := m.Insert(t.Context(), domain.Fields{"title": "New"})
	require.NoError(t, err)
	_, err = m.Toggle(t.Context(), "1")
	require.NoError(t, err)
	_, err = m.Reorder(t.Context(), 3, 0)
	require.NoError(t, err)
	_, err = m.Delete(t.Context(), "2", true)
	require.NoError(t, err)

	release()
	v := waitIdle(t, m)

	assert.Equal(t, []string{"List", "Insert", "UpdateFields", "UpsertMany", "DeleteByID"}, store.Calls())
	assert.Equal(t, []string{"4", "1", "3"}, viewIDs(v))
	assert.Equal(t, []string{"4", "1", "3"}, storedIDs(store.stored("")))
}

func TestManager_FailedWriteIsReconciled(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)
	store.failNext("UpdateFields", errStoreDown)

	row, err := m.Toggle(t.Context(), "1")
	require.NoError(t, err, "write failures are not surfaced to the caller")
	assert.Equal(t, true, row.Fields["done"])

	v := waitIdle(t, m)

	assert.Equal(t, false, v.Rows[0].Fields["done"], "store state wins after reconciliation")
	assert.Equal(t, 1, v.Sync.Failures)
	assert.Contains(t, v.Sync.LastError, errStoreDown.Error())
	assert.NotNil(t, v.Sync.LastErrorAt)
	assert.False(t, v.Sync.Diverged)
	require.NotNil(t, v.Sync.LastDivergence)
	assert.Equal(t, []string{"1"}, v.Sync.LastDivergence.Changed)
	assert.Equal(t, []string{"List", "UpdateFields", "List"}, store.Calls())
}

func TestManager_FailedReorderIsReconciled(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)
	store.failNext("UpsertMany", errStoreDown)

	_, err := m.Reorder(t.Context(), 0, 2)
	require.NoError(t, err)

	v := waitIdle(t, m)
	assert.Equal(t, []string{"1", "2", "3"}, viewIDs(v))
	assert.Len(t, v.Sync.LastDivergence.Changed, 3)
}

func TestManager_FailedInsertIsReconciled(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)
	store.failNext("Insert", errStoreDown)

	row, _, err := m.Insert(t.Context(), domain.Fields{"title": "lost"})
	require.NoError(t, err)

	// The toggle can not resolve the placeholder and fails as well.
	_, err = m.Toggle(t.Context(), row.ID)
	require.NoError(t, err)

	v := waitIdle(t, m)
	assert.Len(t, v.Rows, 3)
	assert.Equal(t, 2, v.Sync.Failures)
	require.NotNil(t, v.Sync.LastDivergence)
	assert.Equal(t, []string{row.ID}, v.Sync.LastDivergence.Missing)
}

func TestManager_FailedRefreshKeepsRows(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)
	store.failNext("List", errStoreDown)

	err := m.Refresh(t.Context())
	require.ErrorIs(t, err, errStoreDown)

	v, err := m.View(t.Context())
	require.NoError(t, err)
	assert.Equal(t, StatusReady, v.Status, "never returns to loading")
	assert.Len(t, v.Rows, 3)
}

func TestManager_RefreshPicksUpExternalChanges(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	require.NoError(t, store.DeleteByID(t.Context(), "2"))
	require.NoError(t, m.Refresh(t.Context()))

	v, err := m.View(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, viewIDs(v))
}

func TestManager_ShutdownDrainsQueuedWrites(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	release := store.hold()
	_, err := m.Toggle(t.Context(), "1")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	assert.Equal(t, true, store.stored("")[0].Fields["done"])

	_, err = m.Toggle(t.Context(), "1")
	assert.ErrorIs(t, err, domain.ErrClosed)
	_, err = m.View(t.Context())
	assert.ErrorIs(t, err, domain.ErrClosed)

	require.NoError(t, m.Shutdown(ctx), "shutdown is idempotent")
}

func TestManager_ShutdownTimeout(t *testing.T) {
	store := scenarioStore()
	m := newTestManager(t, store)

	release := store.hold()
	t.Cleanup(release)
	_, err := m.Toggle(t.Context(), "1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = m.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_RejectsInvalidScope(t *testing.T) {
	_, err := NewManager(t.Context(), tasksCollection(), "Mon", newFakeStore(), Config{})
	assert.ErrorIs(t, err, domain.ErrScopeNotSupported)
}

func TestManager_OperationTimeout(t *testing.T) {
	store := &slowStore{fakeStore: scenarioStore()}
	m, err := NewManager(t.Context(), tasksCollection(), "", store, Config{OperationTimeout: 10 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	require.NoError(t, m.Load(t.Context()))

	_, err = m.Toggle(t.Context(), "1")
	require.NoError(t, err)

	v := waitIdle(t, m)
	assert.Equal(t, 1, v.Sync.Failures)
	assert.Contains(t, v.Sync.LastError, context.DeadlineExceeded.Error())
}

// slowStore blocks updates until the operation context expires.
type slowStore struct {
	*fakeStore
}

func (s *slowStore) UpdateFields(ctx context.Context, _ string, _ domain.Fields) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDiffRows(t *testing.T) {
	local := []domain.Row{taskRow("1", 0, "x"), taskRow("2", 1, "y"), taskRow("p", 2, "new")}
	remote := []domain.Row{taskRow("2", 0, "y"), taskRow("1", 1, "x"), taskRow("9", 2, "other")}

	d := diffRows(local, remote)
	assert.Equal(t, []string{"p"}, d.Missing)
	assert.Equal(t, []string{"9"}, d.Unexpected)
	assert.Equal(t, []string{"1", "2"}, d.Changed)
	assert.Equal(t, 4, d.Size())

	assert.Zero(t, diffRows(remote, remote).Size())
}
