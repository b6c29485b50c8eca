package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/persistence/rowsql"
)

// RowTable is the row store of one collection table.
// Ids are UUIDv7 strings assigned on insert.
type RowTable struct {
	store *Store
	table *rowsql.Table
}

func (t *RowTable) name() string { return t.table.Collection().Table }

// List returns the rows of scope in list order.
func (t *RowTable) List(ctx context.Context, scope string) ([]domain.Row, error) {
	query, args := t.table.List(scope)
	rows, err := t.store.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapSQLiteError("list "+t.name(), err)
	}
	defer rows.Close()

	out := []domain.Row{}
	for rows.Next() {
		dest := t.table.Dest()
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.name(), err)
		}
		row, err := t.table.Decode(dest)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s row: %w", t.name(), err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLiteError("list "+t.name(), err)
	}
	return out, nil
}

// Insert stores a new row under a fresh id and returns it.
func (t *RowTable) Insert(ctx context.Context, row domain.Row) (domain.Row, error) {
	id, err := newID()
	if err != nil {
		return domain.Row{}, err
	}
	query, args := t.table.Insert(id, row, time.Now().UTC())

	dest := t.table.Dest()
	if err := t.store.q.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		return domain.Row{}, wrapSQLiteError("insert into "+t.name(), err)
	}
	return t.table.Decode(dest)
}

// UpdateFields sets payload columns of one row. Absent ids are a no-op.
func (t *RowTable) UpdateFields(ctx context.Context, id string, fields domain.Fields) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	query, args, err := t.table.UpdateFields(id, fields, time.Now().UTC())
	if err != nil {
		return err
	}
	if _, err := t.store.q.ExecContext(ctx, query, args...); err != nil {
		return wrapSQLiteError("update "+t.name(), err)
	}
	return nil
}

// DeleteByID removes one row. Absent ids are a no-op.
func (t *RowTable) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	query, args := t.table.Delete(id)
	if _, err := t.store.q.ExecContext(ctx, query, args...); err != nil {
		return wrapSQLiteError("delete from "+t.name(), err)
	}
	return nil
}

// UpsertMany writes every row in one INSERT ... ON CONFLICT statement
// inside a transaction.
func (t *RowTable) UpsertMany(ctx context.Context, rows []domain.Row) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if _, err := uuid.Parse(r.ID); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
		}
	}

	query, args := t.table.UpsertMany(rows, time.Now().UTC())
	return t.store.executeInTransaction(ctx, "upsert_"+t.name(), func(tx *Store) error {
		if _, err := tx.q.ExecContext(ctx, query, args...); err != nil {
			return wrapSQLiteError("upsert into "+t.name(), err)
		}
		return nil
	})
}
