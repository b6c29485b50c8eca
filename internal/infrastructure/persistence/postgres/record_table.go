package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jyl/universe/internal/application/record"
	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/persistence/rowsql"
)

// Records returns the store of a record set.
func (s *Store) Records(set *domain.RecordSet) record.Store {
	return s.RecordTable(set)
}

// RecordTable returns the concrete store of a record set.
func (s *Store) RecordTable(set *domain.RecordSet) *RecordTable {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.records[set.Name]; ok {
		return t
	}
	t := &RecordTable{store: s, table: rowsql.NewRecordTable(rowsql.Postgres, set)}
	s.records[set.Name] = t
	return t
}

// RecordTable is the store of one record set table.
type RecordTable struct {
	store *Store
	table *rowsql.RecordTable
}

func (t *RecordTable) name() string { return t.table.Set().Table }

// Get returns the record under key.
func (t *RecordTable) Get(ctx context.Context, key string) (domain.Record, error) {
	query, args := t.table.Get(key)
	dest := t.table.Dest()
	if err := t.store.q.QueryRow(ctx, query, args...).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, t.table.Set().Name, key)
		}
		return domain.Record{}, wrapPgError("get from "+t.name(), err)
	}
	return t.table.Decode(dest)
}

// Put upserts the record on its key.
func (t *RecordTable) Put(ctx context.Context, rec domain.Record) (domain.Record, error) {
	query, args, err := t.table.Put(rec, time.Now().UTC())
	if err != nil {
		return domain.Record{}, err
	}
	dest := t.table.Dest()
	if err := t.store.q.QueryRow(ctx, query, args...).Scan(dest...); err != nil {
		return domain.Record{}, wrapPgError("upsert into "+t.name(), err)
	}
	return t.table.Decode(dest)
}

// Delete removes the record under key. Absent keys are a no-op.
func (t *RecordTable) Delete(ctx context.Context, key string) error {
	query, args := t.table.Delete(key)
	if _, err := t.store.q.Exec(ctx, query, args...); err != nil {
		return wrapPgError("delete from "+t.name(), err)
	}
	return nil
}

// List returns up to limit records, newest key first.
func (t *RecordTable) List(ctx context.Context, limit int) ([]domain.Record, error) {
	query, args := t.table.List(limit)
	rows, err := t.store.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapPgError("list "+t.name(), err)
	}
	defer rows.Close()

	out := []domain.Record{}
	for rows.Next() {
		dest := t.table.Dest()
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", t.name(), err)
		}
		rec, err := t.table.Decode(dest)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", t.name(), err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPgError("list "+t.name(), err)
	}
	return out, nil
}
