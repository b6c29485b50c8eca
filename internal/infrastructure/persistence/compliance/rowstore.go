// Package compliance holds the behaviour every collection.RowStore
// implementation must share.
package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/application/collection"
	"github.com/jyl/universe/internal/catalog"
	"github.com/jyl/universe/internal/domain"
)

// RunRowStoreComplianceTest runs the standard row store tests.
// setup returns a provider over empty tables and a teardown func.
func RunRowStoreComplianceTest(t *testing.T, setup func(t *testing.T) (collection.StoreProvider, func())) {
	cat := catalog.MustDefault()
	mustGet := func(name string) *domain.Collection {
		coll, err := cat.Get(name)
		require.NoError(t, err)
		return coll
	}
	todos := mustGet("todos")
	weekly := mustGet("weekly_plan")

	newTodo := func(t *testing.T, pos int, text string) domain.Row {
		t.Helper()
		fields, err := todos.NewRowFields(domain.Fields{"text": text})
		require.NoError(t, err)
		return domain.Row{Position: pos, Fields: fields}
	}

	insert := func(t *testing.T, store collection.RowStore, row domain.Row) domain.Row {
		t.Helper()
		got, err := store.Insert(context.Background(), row)
		require.NoError(t, err)
		return got
	}

	texts := func(rows []domain.Row, field string) []any {
		out := make([]any, len(rows))
		for i, r := range rows {
			out[i] = r.Fields[field]
		}
		return out
	}

	t.Run("InsertAssignsIDAndTimestamps", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Rows(todos)

		before := time.Now().UTC().Add(-time.Second)
		row := newTodo(t, 0, "buy milk")
		row.ID = "ignored"
		got := insert(t, store, row)

		_, err := uuid.Parse(got.ID)
		require.NoError(t, err, "store assigns a uuid")
		assert.Equal(t, 0, got.Position)
		assert.Equal(t, "buy milk", got.Fields["text"])
		assert.Equal(t, false, got.Fields["completed"])
		assert.Equal(t, "medium", got.Fields["priority"])
		assert.True(t, got.CreatedAt.After(before), "created_at %v", got.CreatedAt)
		assert.Equal(t, time.UTC, got.CreatedAt.Location())
	})

	t.Run("ListOrdersByPositionThenInsertion", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Rows(todos)

		insert(t, store, newTodo(t, 1, "b1"))
		insert(t, store, newTodo(t, 0, "a"))
		time.Sleep(2 * time.Millisecond)
		insert(t, store, newTodo(t, 1, "b2"))

		rows, err := store.List(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b1", "b2"}, texts(rows, "text"))
	})

	t.Run("ListEmpty", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()

		rows, err := provider.Rows(todos).List(context.Background(), "")
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	t.Run("ListFiltersByScope", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Rows(weekly)

		for _, day := range []string{"Mon", "Tue", "Mon"} {
			fields, err := weekly.NewRowFields(domain.Fields{"content": "plan " + day})
			require.NoError(t, err)
			insert(t, store, domain.Row{Scope: day, Fields: fields})
		}

		mon, err := store.List(context.Background(), "Mon")
		require.NoError(t, err)
		require.Len(t, mon, 2)
		for _, r := range mon {
			assert.Equal(t, "Mon", r.Scope)
		}

		sun, err := store.List(context.Background(), "Sun")
		require.NoError(t, err)
		assert.Empty(t, sun)
	})

	t.Run("UpdateFieldsPatchesOnlyNamedColumns", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Rows(todos)
		ctx := context.Background()

		row := insert(t, store, newTodo(t, 4, "walk"))
		require.NoError(t, store.UpdateFields(ctx, row.ID, domain.Fields{"completed": true}))

		rows, err := store.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, true, rows[0].Fields["completed"])
		assert.Equal(t, "walk", rows[0].Fields["text"])
		assert.Equal(t, 4, rows[0].Position, "updates never touch position")
		assert.False(t, rows[0].UpdatedAt.Before(row.UpdatedAt))
	})

	t.Run("UpdateUnknownColumn", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Rows(todos)

		row := insert(t, store, newTodo(t, 0, "walk"))
		err := store.UpdateFields(context.Background(), row.ID, domain.Fields{"position": int64(3)})
		assert.ErrorIs(t, err, domain.ErrUnknownField)
	})

	t.Run("AbsentIDsAreNoOps", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Rows(todos)
		ctx := context.Background()

		insert(t, store, newTodo(t, 0, "keep"))
		missing := uuid.NewString()

		assert.NoError(t, store.UpdateFields(ctx, missing, domain.Fields{"completed": true}))
		assert.NoError(t, store.DeleteByID(ctx, missing))

		rows, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("DeleteLeavesPositionGap", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Rows(todos)
		ctx := context.Background()

		a := insert(t, store, newTodo(t, 0, "a"))
		b := insert(t, store, newTodo(t, 1, "b"))
		c := insert(t, store, newTodo(t, 2, "c"))

		require.NoError(t, store.DeleteByID(ctx, b.ID))

		rows, err := store.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, a.ID, rows[0].ID)
		assert.Equal(t, c.ID, rows[1].ID)
		assert.Equal(t, 2, rows[1].Position)
	})

	t.Run("UpsertManyRenumbers", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Rows(todos)
		ctx := context.Background()

		a := insert(t, store, newTodo(t, 0, "a"))
		b := insert(t, store, newTodo(t, 1, "b"))
		c := insert(t, store, newTodo(t, 2, "c"))

		out, err := collection.Reorder([]domain.Row{a, b, c}, 0, 2)
		require.NoError(t, err)
		require.NoError(t, store.UpsertMany(ctx, out))

		rows, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []any{"b", "c", "a"}, texts(rows, "text"))
		for i, r := range rows {
			assert.Equal(t, i, r.Position)
		}
		assert.True(t, rows[2].CreatedAt.Equal(a.CreatedAt), "upsert keeps created_at")
	})

	t.Run("UpsertManyInsertsAbsentRows", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Rows(todos)
		ctx := context.Background()

		ghost := newTodo(t, 0, "resurrected")
		ghost.ID = uuid.NewString()
		require.NoError(t, store.UpsertMany(ctx, []domain.Row{ghost}))

		rows, err := store.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, ghost.ID, rows[0].ID)
	})

	t.Run("UpsertManyEmpty", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		assert.NoError(t, provider.Rows(todos).UpsertMany(context.Background(), nil))
	})

	t.Run("RoundTripsFieldKinds", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		ctx := context.Background()

		schedules := mustGet("schedules")
		fields, err := schedules.NewRowFields(domain.Fields{
			"title":             "yoga",
			"start_time":        "07:30",
			"is_recurring":      true,
			"recurrence_period": "weekly",
			"recurrence_until":  "2025-12-31",
		})
		require.NoError(t, err)

		store := provider.Rows(schedules)
		insert(t, store, domain.Row{Scope: "MON", Fields: fields})

		rows, err := store.List(ctx, "MON")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, fields, rows[0].Fields)

		require.NoError(t, store.UpdateFields(ctx, rows[0].ID, domain.Fields{"recurrence_until": nil}))
		rows, err = store.List(ctx, "MON")
		require.NoError(t, err)
		assert.Nil(t, rows[0].Fields["recurrence_until"])

		reviews := mustGet("skin_reviews")
		fields, err = reviews.NewRowFields(domain.Fields{"name": "sunscreen", "rating": float64(5)})
		require.NoError(t, err)
		insert(t, provider.Rows(reviews), domain.Row{Fields: fields})

		rows, err = provider.Rows(reviews).List(ctx, "")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(5), rows[0].Fields["rating"])
		assert.Equal(t, true, rows[0].Fields["repurchase"])
	})
}
