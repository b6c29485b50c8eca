package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/jyl/universe/internal/application/record"
	"github.com/jyl/universe/internal/domain"
)

// Records returns the store of a record set.
func (s *Store) Records(set *domain.RecordSet) record.Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.records[set.Name]; ok {
		return t
	}
	t := &RecordTable{store: s, set: set, recs: map[string]domain.Record{}}
	s.records[set.Name] = t
	return t
}

// RecordTable is one record set table keyed by the natural key.
type RecordTable struct {
	store *Store
	set   *domain.RecordSet
	recs  map[string]domain.Record
}

// Get returns the record under key.
func (t *RecordTable) Get(ctx context.Context, key string) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return domain.Record{}, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	rec, ok := t.recs[key]
	if !ok {
		return domain.Record{}, fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, t.set.Name, key)
	}
	return cloneRecord(rec)
}

// Put inserts or replaces the record under rec.Key.
func (t *RecordTable) Put(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return domain.Record{}, err
	}
	rec, err := cloneRecord(rec)
	if err != nil {
		return domain.Record{}, err
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	now := t.store.now()
	out := make(domain.Fields, len(t.set.Fields))
	for _, name := range t.set.FieldNames() {
		out[name] = rec.Fields[name]
	}
	rec.Fields = out
	rec.UpdatedAt = now
	rec.CreatedAt = now
	if stored, ok := t.recs[rec.Key]; ok {
		rec.CreatedAt = stored.CreatedAt
	}
	t.recs[rec.Key] = rec
	return cloneRecord(rec)
}

// Delete removes the record under key. Absent keys are a no-op.
func (t *RecordTable) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	delete(t.recs, key)
	return nil
}

// List returns up to limit records, newest key first.
func (t *RecordTable) List(ctx context.Context, limit int) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	keys := make([]string, 0, len(t.recs))
	for k := range t.recs {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int { return cmp.Compare(b, a) })
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]domain.Record, len(keys))
	for i, k := range keys {
		rec, err := cloneRecord(t.recs[k])
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

// cloneRecord deep-copies JSON columns through a round trip so callers
// never share nested maps with the table.
func cloneRecord(rec domain.Record) (domain.Record, error) {
	fields := rec.Fields.Clone()
	for name, v := range fields {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}
		raw, err := json.Marshal(obj)
		if err != nil {
			return domain.Record{}, fmt.Errorf("%w: %s: %w", domain.ErrInvalidFieldValue, name, err)
		}
		var cp map[string]any
		if err := json.Unmarshal(raw, &cp); err != nil {
			return domain.Record{}, err
		}
		fields[name] = cp
	}
	rec.Fields = fields
	return rec, nil
}
