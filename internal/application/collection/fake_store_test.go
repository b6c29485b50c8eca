package collection

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/domain"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore is an in-memory RowStore that records every call and can be
// told to fail or to hold calls until released.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]domain.Row
	nextID  int
	calls   []string
	updates []domain.Fields
	failing map[string][]error
	gate    chan struct{}
	clock   time.Time
}

func newFakeStore(rows ...domain.Row) *fakeStore {
	f := &fakeStore{
		rows:    map[string]domain.Row{},
		failing: map[string][]error{},
		clock:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, r := range rows {
		f.nextID++
		f.clock = f.clock.Add(time.Second)
		if r.CreatedAt.IsZero() {
			r.CreatedAt = f.clock
			r.UpdatedAt = f.clock
		}
		f.rows[r.ID] = r
	}
	return f
}

// failNext makes the next call of the given kind return err.
func (f *fakeStore) failNext(call string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[call] = append(f.failing[call], err)
}

// hold blocks every call until the returned release func is called.
func (f *fakeStore) hold() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.gate = nil
			f.mu.Unlock()
			close(gate)
		})
	}
}

// enter waits on the gate, records the call and pops a queued failure.
func (f *fakeStore) enter(call string) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if errs := f.failing[call]; len(errs) > 0 {
		f.failing[call] = errs[1:]
		return errs[0]
	}
	return nil
}

func (f *fakeStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeStore) Updates() []domain.Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.updates)
}

func (f *fakeStore) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeStore) List(_ context.Context, scope string) ([]domain.Row, error) {
	if err := f.enter("List"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(scope), nil
}

func (f *fakeStore) sorted(scope string) []domain.Row {
	out := make([]domain.Row, 0, len(f.rows))
	for _, r := range f.rows {
		if r.Scope == scope {
			r.Fields = r.Fields.Clone()
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.Row) int {
		return cmp.Or(
			cmp.Compare(a.Position, b.Position),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out
}

func (f *fakeStore) Insert(_ context.Context, row domain.Row) (domain.Row, error) {
	if err := f.enter("Insert"); err != nil {
		return domain.Row{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	row.ID = fmt.Sprintf("%d", f.nextID)
	row.Fields = row.Fields.Clone()
	row.CreatedAt = f.clock
	row.UpdatedAt = f.clock
	f.rows[row.ID] = row
	return row, nil
}

func (f *fakeStore) UpdateFields(_ context.Context, id string, fields domain.Fields) error {
	if err := f.enter("UpdateFields"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fields.Clone())
	if r, ok := f.rows[id]; ok {
		f.rows[id] = r.WithFields(fields)
	}
	return nil
}

func (f *fakeStore) DeleteByID(_ context.Context, id string) error {
	if err := f.enter("DeleteByID"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeStore) UpsertMany(_ context.Context, rows []domain.Row) error {
	if err := f.enter("UpsertMany"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		if existing, ok := f.rows[r.ID]; ok {
			r.CreatedAt = existing.CreatedAt
		}
		r.Fields = r.Fields.Clone()
		f.rows[r.ID] = r
	}
	return nil
}

// stored returns the rows of scope as the store would list them.
func (f *fakeStore) stored(scope string) []domain.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(scope)
}

type fakeProvider struct {
	mu     sync.Mutex
	stores map[string]*fakeStore
}

func (p *fakeProvider) Rows(coll *domain.Collection) RowStore {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stores == nil {
		p.stores = map[string]*fakeStore{}
	}
	s, ok := p.stores[coll.Name]
	if !ok {
		s = newFakeStore()
		p.stores[coll.Name] = s
	}
	return s
}

func tasksCollection() *domain.Collection {
	return &domain.Collection{
		Name:        "tasks",
		Table:       "tasks",
		TitleField:  "title",
		ToggleField: "done",
		Fields: []domain.FieldSpec{
			{Name: "title", Kind: domain.FieldText, Required: true, Editable: true, MaxLength: 100},
			{Name: "note", Kind: domain.FieldText, Editable: true, Default: ""},
			{Name: "done", Kind: domain.FieldBool, Default: false},
		},
	}
}

func taskRow(id string, pos int, title string) domain.Row {
	return domain.Row{
		ID:       id,
		Position: pos,
		Fields:   domain.Fields{"title": title, "note": "", "done": false},
	}
}

// newTestManager starts a loaded manager over store and shuts it down at
// the end of the test.
func newTestManager(t *testing.T, store RowStore) *Manager {
	t.Helper()
	m, err := NewManager(t.Context(), tasksCollection(), "", store, Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	require.NoError(t, m.Load(t.Context()))
	return m
}

// waitIdle waits until no row store call of m is in flight.
func waitIdle(t *testing.T, m *Manager) View {
	t.Helper()
	var v View
	require.Eventually(t, func() bool {
		var err error
		v, err = m.View(t.Context())
		return err == nil && v.Sync.InFlight == 0
	}, 2*time.Second, 5*time.Millisecond)
	return v
}

func viewIDs(v View) []string {
	ids := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		ids[i] = r.ID
	}
	return ids
}

func viewPositions(v View) []int {
	pos := make([]int, len(v.Rows))
	for i, r := range v.Rows {
		pos[i] = r.Position
	}
	return pos
}

func storedIDs(rows []domain.Row) []string {
	return idsOf(rows)
}
