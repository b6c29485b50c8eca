package collection

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jyl/universe/internal/domain"
)

// Status is the lifecycle state of a local list.
type Status string

const (
	// StatusLoading holds until the first successful fetch.
	StatusLoading Status = "loading"
	// StatusReady never reverts to loading; failed re-fetches keep the last good rows.
	StatusReady Status = "ready"
)

// Config holds list manager settings.
type Config struct {
	// OperationTimeout bounds each row store call. Zero means no timeout.
	OperationTimeout time.Duration
}

// RowView is a row as rendered from the local list.
type RowView struct {
	domain.Row
	PendingSync bool
}

// EditView is the active edit-in-place session of a list.
type EditView struct {
	RowID string
	Draft domain.Fields
}

// SyncState reports the health of optimistic writes.
type SyncState struct {
	InFlight       int
	Failures       int
	LastError      string
	LastErrorAt    *time.Time
	Diverged       bool
	LastDivergence *Divergence
}

// View is a consistent copy of a local list.
type View struct {
	Collection string
	Scope      string
	Status     Status
	Rows       []RowView
	Editing    *EditView
	Sync       SyncState
}

// listState is owned by the manager's actor goroutine.
type listState struct {
	status  Status
	rows    []domain.Row
	pending map[string]int
	aliases map[string]string
	editing *editSession

	seq          uint64
	lastWriteSeq uint64
	inFlight     int

	fetching       bool
	fetchReconcile bool
	waiters        []chan error

	failures  int
	lastErr   string
	lastErrAt time.Time
	diverged  bool
	lastDiff  *Divergence

	closing bool
}

// Manager keeps one ordered list (a collection scope) in memory and mirrors
// every mutation to the row store exactly once.
//
// All state lives in a single actor goroutine. Public methods send a closure
// to the actor and wait for it to run, so mutations apply in call order and
// each caller observes its own write. Row store calls run on a separate sync
// goroutine; failures are reconciled by re-fetching rather than rolled back.
type Manager struct {
	coll  *domain.Collection
	scope string
	name  string
	ctx   context.Context

	cmds    chan func(*listState)
	results chan syncResult
	syncer  *syncer
	stopped chan struct{}
	st      listState

	shutdownOnce sync.Once
}

// NewManager starts the actor and sync goroutines for one list.
// The list starts in StatusLoading; call Load or View to fetch it.
func NewManager(ctx context.Context, coll *domain.Collection, scope string, store RowStore, cfg Config) (*Manager, error) {
	return newManager(ctx, coll, scope, store, cfg, newTelemetry())
}

func newManager(ctx context.Context, coll *domain.Collection, scope string, store RowStore, cfg Config, tel *telemetry) (*Manager, error) {
	if err := coll.ValidateScope(scope); err != nil {
		return nil, err
	}

	name := coll.Name
	if scope != "" {
		name += "/" + scope
	}

	results := make(chan syncResult)
	m := &Manager{
		coll:    coll,
		scope:   scope,
		name:    name,
		ctx:     context.WithoutCancel(ctx),
		cmds:    make(chan func(*listState)),
		results: results,
		stopped: make(chan struct{}),
		st: listState{
			status:  StatusLoading,
			pending: map[string]int{},
			aliases: map[string]string{},
		},
	}
	m.syncer = newSyncer(ctx, store, name, scope, results, cfg.OperationTimeout, tel)

	go m.run()
	return m, nil
}

// Collection returns the descriptor of the managed list.
func (m *Manager) Collection() *domain.Collection { return m.coll }

// Scope returns the scope value of the managed list.
func (m *Manager) Scope() string { return m.scope }

func (m *Manager) run() {
	defer close(m.stopped)

	for {
		select {
		case cmd := <-m.cmds:
			cmd(&m.st)
		case res := <-m.results:
			m.handleResult(&m.st, res)
		case <-m.syncer.done:
			m.notifyWaiters(&m.st, domain.ErrClosed)
			return
		}
	}
}

// do runs fn on the actor and waits for it to finish.
func (m *Manager) do(ctx context.Context, fn func(*listState)) error {
	done := make(chan struct{})
	cmd := func(st *listState) {
		defer close(done)
		fn(st)
	}

	select {
	case m.cmds <- cmd:
	case <-m.stopped:
		return domain.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	<-done
	return nil
}

// mutate runs fn on the actor once the list is ready and open.
func (m *Manager) mutate(ctx context.Context, fn func(*listState) error) error {
	var err error
	if doErr := m.do(ctx, func(st *listState) {
		switch {
		case st.closing:
			err = domain.ErrClosed
		case st.status != StatusReady:
			err = domain.ErrNotReady
		default:
			err = fn(st)
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// Load performs the first fetch if it has not completed yet and waits for it.
func (m *Manager) Load(ctx context.Context) error {
	return m.fetch(ctx, false)
}

// Refresh re-fetches the list from the row store and replaces the local
// rows wholesale. A failed refresh keeps the current rows.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.fetch(ctx, true)
}

func (m *Manager) fetch(ctx context.Context, force bool) error {
	var wait chan error
	err := m.do(ctx, func(st *listState) {
		if st.closing {
			return
		}
		if st.status == StatusReady && !force {
			return
		}
		wait = make(chan error, 1)
		st.waiters = append(st.waiters, wait)
		m.requestFetch(st, false)
	})
	if err != nil || wait == nil {
		return err
	}

	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View returns a copy of the list, loading it first if needed. A failed
// first load is reported through Status rather than an error.
func (m *Manager) View(ctx context.Context) (View, error) {
	if err := m.Load(ctx); err != nil && ctx.Err() != nil {
		return View{}, err
	}

	var v View
	err := m.do(ctx, func(st *listState) {
		v = m.snapshot(st)
	})
	return v, err
}

func (m *Manager) snapshot(st *listState) View {
	v := View{
		Collection: m.coll.Name,
		Scope:      m.scope,
		Status:     st.status,
		Rows:       make([]RowView, len(st.rows)),
		Sync: SyncState{
			InFlight: st.inFlight,
			Failures: st.failures,
			Diverged: st.diverged,
		},
	}
	for i, r := range st.rows {
		r.Fields = r.Fields.Clone()
		v.Rows[i] = RowView{Row: r, PendingSync: st.pending[r.ID] > 0}
	}
	if st.lastErr != "" {
		at := st.lastErrAt
		v.Sync.LastError = st.lastErr
		v.Sync.LastErrorAt = &at
	}
	if st.lastDiff != nil {
		d := *st.lastDiff
		v.Sync.LastDivergence = &d
	}
	if st.editing != nil {
		edit := st.editing.view()
		v.Editing = &edit
	}
	return v
}

// Insert appends a new row at NextPosition and dispatches one insert.
// A blank title is silently rejected: applied is false and nothing is sent.
// The returned row carries a placeholder id until the store assigns one.
func (m *Manager) Insert(ctx context.Context, input domain.Fields) (row domain.Row, applied bool, err error) {
	err = m.mutate(ctx, func(st *listState) error {
		if domain.IsBlank(input[m.coll.TitleField]) {
			return nil
		}
		fields, err := m.coll.NewRowFields(input)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		row = domain.Row{
			ID:        placeholderPrefix + uuid.NewString(),
			Position:  NextPosition(st.rows),
			Scope:     m.scope,
			Fields:    fields,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.rows = append(st.rows, row)
		applied = true

		m.dispatch(st, syncOp{kind: opInsert, row: row, rowIDs: []string{row.ID}})
		return nil
	})
	return row, applied, err
}

// Update patches payload columns of one row and dispatches one update
// carrying only the changed columns. Position can not be patched.
// Blanking the title is silently rejected.
func (m *Manager) Update(ctx context.Context, id string, patch domain.Fields) (row domain.Row, applied bool, err error) {
	err = m.mutate(ctx, func(st *listState) error {
		i, err := m.indexOf(st, id)
		if err != nil {
			return err
		}
		normalized, err := m.coll.NormalizePatch(patch)
		if err != nil {
			return err
		}
		if title, ok := normalized[m.coll.TitleField]; ok && domain.IsBlank(title) {
			row = st.rows[i]
			return nil
		}

		row, applied = m.applyPatch(st, i, normalized), true
		return nil
	})
	return row, applied, err
}

// Toggle flips the collection's toggle column of one row.
func (m *Manager) Toggle(ctx context.Context, id string) (row domain.Row, err error) {
	err = m.mutate(ctx, func(st *listState) error {
		i, err := m.indexOf(st, id)
		if err != nil {
			return err
		}
		next, err := m.coll.ToggleValue(st.rows[i].Fields[m.coll.ToggleField])
		if err != nil {
			return err
		}
		row = m.applyPatch(st, i, domain.Fields{m.coll.ToggleField: next})
		return nil
	})
	return row, err
}

// applyPatch writes the changed subset of patch into the local row and
// dispatches it. Nothing is sent when no value changes.
func (m *Manager) applyPatch(st *listState, i int, patch domain.Fields) domain.Row {
	current := st.rows[i]
	changed := current.Fields.Changed(patch)
	if len(changed) == 0 {
		return current
	}

	updated := current.WithFields(changed)
	updated.UpdatedAt = time.Now().UTC()
	st.rows[i] = updated

	m.dispatch(st, syncOp{kind: opUpdate, id: updated.ID, fields: changed, rowIDs: []string{updated.ID}})
	return updated
}

// Delete removes one row once confirmed. An unconfirmed delete is a no-op.
// Remaining positions are left as they are; the next reorder closes the gap.
func (m *Manager) Delete(ctx context.Context, id string, confirmed bool) (applied bool, err error) {
	if !confirmed {
		return false, nil
	}
	err = m.mutate(ctx, func(st *listState) error {
		i, err := m.indexOf(st, id)
		if err != nil {
			return err
		}
		removed := st.rows[i]
		st.rows = slices.Delete(st.rows, i, i+1)
		if st.editing != nil && st.editing.rowID == removed.ID {
			st.editing = nil
		}
		applied = true

		m.dispatch(st, syncOp{kind: opDelete, id: removed.ID, rowIDs: []string{removed.ID}})
		return nil
	})
	return applied, err
}

// Reorder moves the row at source to destination, renumbers the whole list
// and dispatches one batched upsert of every row. Moving a row onto its own
// index changes nothing and sends nothing.
func (m *Manager) Reorder(ctx context.Context, source, destination int) (applied bool, err error) {
	err = m.mutate(ctx, func(st *listState) error {
		out, err := Reorder(st.rows, source, destination)
		if err != nil {
			return err
		}
		if source == destination {
			return nil
		}

		st.rows = out
		applied = true

		ids := make([]string, len(out))
		for i, r := range out {
			ids[i] = r.ID
		}
		m.dispatch(st, syncOp{kind: opReorder, rows: slices.Clone(out), rowIDs: ids})
		return nil
	})
	return applied, err
}

// Shutdown stops accepting commands, waits for queued row store calls to
// finish and stops the actor. Safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	var shutdownErr error
	m.shutdownOnce.Do(func() {
		_ = m.do(ctx, func(st *listState) { st.closing = true })
		m.syncer.close()

		select {
		case <-m.stopped:
		case <-ctx.Done():
			shutdownErr = fmt.Errorf("shutdown timeout: %w", ctx.Err())
		}
	})
	return shutdownErr
}

func (m *Manager) indexOf(st *listState, id string) (int, error) {
	id = st.canonical(id)
	i := slices.IndexFunc(st.rows, func(r domain.Row) bool { return r.ID == id })
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", domain.ErrRowNotFound, id)
	}
	return i, nil
}

// canonical maps a placeholder id to the store id once the insert landed.
func (st *listState) canonical(id string) string {
	if real, ok := st.aliases[id]; ok {
		return real
	}
	return id
}

func (m *Manager) dispatch(st *listState, op syncOp) {
	st.seq++
	op.seq = st.seq
	if op.kind != opLoad {
		st.lastWriteSeq = op.seq
	}

	if !m.syncer.enqueue(op) {
		slog.WarnContext(m.ctx, "dropping row store operation after shutdown",
			slog.String("list", m.name),
			slog.String("operation", string(op.kind)))
		return
	}

	st.inFlight++
	for _, id := range op.rowIDs {
		st.pending[id]++
	}
}

// requestFetch queues a list fetch unless one is already queued.
func (m *Manager) requestFetch(st *listState, reconcile bool) {
	if st.fetching {
		st.fetchReconcile = st.fetchReconcile || reconcile
		return
	}
	st.fetching = true
	st.fetchReconcile = reconcile
	m.dispatch(st, syncOp{kind: opLoad})
}

func (m *Manager) handleResult(st *listState, res syncResult) {
	st.inFlight--
	for _, id := range res.op.rowIDs {
		key := st.canonical(id)
		if st.pending[key] <= 1 {
			delete(st.pending, key)
		} else {
			st.pending[key]--
		}
	}

	if res.op.kind == opLoad {
		m.handleFetch(st, res)
		return
	}

	if res.op.kind == opInsert && res.err == nil {
		m.adoptInsert(st, res.op.row.ID, res.inserted)
	}

	if res.err != nil {
		st.failures++
		st.lastErr = fmt.Sprintf("%s: %v", res.op.kind, res.err)
		st.lastErrAt = time.Now().UTC()
		st.diverged = true
		if !st.closing {
			m.requestFetch(st, true)
		}
	}
}

// adoptInsert swaps the placeholder id of an optimistic insert for the id
// the store assigned, keeping any local edits made in the meantime.
func (m *Manager) adoptInsert(st *listState, placeholder string, inserted domain.Row) {
	st.aliases[placeholder] = inserted.ID
	if n, ok := st.pending[placeholder]; ok {
		delete(st.pending, placeholder)
		st.pending[inserted.ID] += n
	}
	if st.editing != nil && st.editing.rowID == placeholder {
		st.editing.rowID = inserted.ID
	}

	i := slices.IndexFunc(st.rows, func(r domain.Row) bool { return r.ID == placeholder })
	if i < 0 {
		return
	}
	adopted := st.rows[i].WithID(inserted.ID)
	adopted.CreatedAt = inserted.CreatedAt
	adopted.UpdatedAt = inserted.UpdatedAt
	st.rows[i] = adopted
}

func (m *Manager) handleFetch(st *listState, res syncResult) {
	st.fetching = false
	reconcile := st.fetchReconcile
	st.fetchReconcile = false

	if res.err != nil {
		slog.WarnContext(m.ctx, "list fetch failed, keeping last known rows",
			slog.String("list", m.name),
			slog.String("status", string(st.status)),
			slog.Bool("reconcile", reconcile),
			slog.String("error", res.err.Error()))
		m.notifyWaiters(st, fmt.Errorf("fetch %s: %w", m.name, res.err))
		return
	}

	// Writes dispatched after this fetch was queued are not reflected in it.
	if st.status == StatusReady && st.lastWriteSeq > res.op.seq && !st.closing {
		m.requestFetch(st, reconcile)
		return
	}

	if reconcile {
		diff := diffRows(st.rows, res.fetched)
		st.lastDiff = &diff
		m.syncer.telemetry.recordReconciliation(m.ctx, m.name, diff)
		slog.InfoContext(m.ctx, "list reconciled with row store",
			slog.String("list", m.name),
			slog.Int("missing", len(diff.Missing)),
			slog.Int("unexpected", len(diff.Unexpected)),
			slog.Int("changed", len(diff.Changed)))
	}

	st.rows = res.fetched
	st.status = StatusReady
	st.diverged = false

	if st.editing != nil && !slices.ContainsFunc(st.rows, func(r domain.Row) bool { return r.ID == st.editing.rowID }) {
		st.editing = nil
	}

	m.notifyWaiters(st, nil)
}

func (m *Manager) notifyWaiters(st *listState, err error) {
	for _, w := range st.waiters {
		w <- err
	}
	st.waiters = nil
}
