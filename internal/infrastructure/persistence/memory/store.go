// Package memory is a process-local store for the memory driver and for
// tests that need real store semantics without a database.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jyl/universe/internal/application/auth"
	"github.com/jyl/universe/internal/application/collection"
	"github.com/jyl/universe/internal/application/record"
	"github.com/jyl/universe/internal/domain"
)

// Store keeps every collection table, record set, API key and session in
// maps guarded by one mutex. Values are copied in and out.
type Store struct {
	mu       sync.Mutex
	tables   map[string]*RowTable
	records  map[string]*RecordTable
	keys     map[string]domain.APIKey
	sessions map[string]domain.Session
	now      func() time.Time
}

var (
	_ auth.Repository          = (*Store)(nil)
	_ collection.StoreProvider = (*Store)(nil)
	_ collection.RowStore      = (*RowTable)(nil)
	_ record.StoreProvider     = (*Store)(nil)
	_ record.Store             = (*RecordTable)(nil)
)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		tables:   map[string]*RowTable{},
		records:  map[string]*RecordTable{},
		keys:     map[string]domain.APIKey{},
		sessions: map[string]domain.Session{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op; the store lives as long as the process.
func (s *Store) Close() error { return nil }

// Rows returns the row store of a collection table.
func (s *Store) Rows(coll *domain.Collection) collection.RowStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tables[coll.Name]; ok {
		return t
	}
	t := &RowTable{store: s, coll: coll, rows: map[string]storedRow{}}
	s.tables[coll.Name] = t
	return t
}

type storedRow struct {
	row domain.Row
	seq uint64
}

// RowTable is one collection table. seq records insertion order for the
// list tiebreak.
type RowTable struct {
	store *Store
	coll  *domain.Collection
	rows  map[string]storedRow
	seq   uint64
}

// List returns the rows of scope in list order.
func (t *RowTable) List(ctx context.Context, scope string) ([]domain.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	matched := make([]storedRow, 0, len(t.rows))
	for _, r := range t.rows {
		if t.coll.Scoped() && r.row.Scope != scope {
			continue
		}
		matched = append(matched, r)
	}
	slices.SortFunc(matched, func(a, b storedRow) int {
		return cmp.Or(
			cmp.Compare(a.row.Position, b.row.Position),
			a.row.CreatedAt.Compare(b.row.CreatedAt),
			cmp.Compare(a.seq, b.seq),
		)
	})

	out := make([]domain.Row, len(matched))
	for i, r := range matched {
		out[i] = cloneRow(r.row)
	}
	return out, nil
}

// Insert stores a new row under a fresh UUIDv7.
func (t *RowTable) Insert(ctx context.Context, row domain.Row) (domain.Row, error) {
	if err := ctx.Err(); err != nil {
		return domain.Row{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Row{}, fmt.Errorf("failed to generate id: %w", err)
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	now := t.store.now()
	row = cloneRow(row)
	row.ID = id.String()
	if !t.coll.Scoped() {
		row.Scope = ""
	}
	row.Fields = t.project(row.Fields)
	row.CreatedAt = now
	row.UpdatedAt = now

	t.seq++
	t.rows[row.ID] = storedRow{row: row, seq: t.seq}
	return cloneRow(row), nil
}

// UpdateFields sets payload columns of one row. Absent ids are a no-op.
func (t *RowTable) UpdateFields(ctx context.Context, id string, fields domain.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty update", domain.ErrInvalidFieldValue)
	}
	for name := range fields {
		if _, ok := t.coll.Field(name); !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownField, name)
		}
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	stored, ok := t.rows[id]
	if !ok {
		return nil
	}
	stored.row.Fields = stored.row.Fields.Merge(fields)
	stored.row.UpdatedAt = t.store.now()
	t.rows[id] = stored
	return nil
}

// DeleteByID removes one row. Absent ids are a no-op.
func (t *RowTable) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	delete(t.rows, id)
	return nil
}

// UpsertMany writes every row at once. Existing rows keep created_at.
func (t *RowTable) UpsertMany(ctx context.Context, rows []domain.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := uuid.Parse(r.ID); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
		}
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	now := t.store.now()
	for _, r := range rows {
		r = cloneRow(r)
		if !t.coll.Scoped() {
			r.Scope = ""
		}
		r.Fields = t.project(r.Fields)
		r.UpdatedAt = now

		stored, ok := t.rows[r.ID]
		if ok {
			r.CreatedAt = stored.row.CreatedAt
		} else {
			r.CreatedAt = now
			t.seq++
			stored.seq = t.seq
		}
		stored.row = r
		t.rows[r.ID] = stored
	}
	return nil
}

// project keeps exactly the declared payload columns, like a table would.
func (t *RowTable) project(fields domain.Fields) domain.Fields {
	out := make(domain.Fields, len(t.coll.Fields))
	for _, name := range t.coll.FieldNames() {
		out[name] = fields[name]
	}
	return out
}

func cloneRow(r domain.Row) domain.Row {
	r.Fields = r.Fields.Clone()
	return r
}
