package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/application/record"
	"github.com/jyl/universe/internal/catalog"
	"github.com/jyl/universe/internal/domain"
)

// RunRecordStoreComplianceTest runs the standard record store tests.
// setup returns a provider over empty tables and a teardown func.
func RunRecordStoreComplianceTest(t *testing.T, setup func(t *testing.T) (record.StoreProvider, func())) {
	cat := catalog.MustDefault()
	mustSet := func(name string) *domain.RecordSet {
		set, err := cat.RecordSet(name)
		require.NoError(t, err)
		return set
	}
	logs := mustSet("health_logs")
	bio := mustSet("bio_config")
	skin := mustSet("skin_profile")

	newRecord := func(t *testing.T, set *domain.RecordSet, key string, input domain.Fields) domain.Record {
		t.Helper()
		fields, err := set.NewRecordFields(input)
		require.NoError(t, err)
		return domain.Record{Key: key, Fields: fields}
	}

	t.Run("GetMissingIsNotFound", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()

		_, err := provider.Records(logs).Get(context.Background(), "2026-01-01")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("PutUpsertsOnKeyAndKeepsCreatedAt", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Records(logs)
		ctx := context.Background()

		before := time.Now().UTC().Add(-time.Second)
		first, err := store.Put(ctx, newRecord(t, logs, "2026-03-01", domain.Fields{"weight": 70.5, "bmr": 1500.0}))
		require.NoError(t, err)
		assert.Equal(t, "2026-03-01", first.Key)
		assert.Equal(t, 70.5, first.Fields["weight"])
		assert.Equal(t, 0.0, first.Fields["muscle_mass"])
		assert.True(t, first.CreatedAt.After(before), "created_at %v", first.CreatedAt)
		assert.Equal(t, time.UTC, first.CreatedAt.Location())

		time.Sleep(2 * time.Millisecond)
		second, err := store.Put(ctx, newRecord(t, logs, "2026-03-01", domain.Fields{"weight": 70.1}))
		require.NoError(t, err)
		assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "created_at kept")
		assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

		got, err := store.Get(ctx, "2026-03-01")
		require.NoError(t, err)
		assert.Equal(t, 70.1, got.Fields["weight"])
		assert.Equal(t, 0.0, got.Fields["bmr"], "put replaces the whole record")
	})

	t.Run("ListNewestKeyFirst", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Records(logs)
		ctx := context.Background()

		for _, day := range []string{"2026-03-02", "2026-02-28", "2026-03-10"} {
			_, err := store.Put(ctx, newRecord(t, logs, day, nil))
			require.NoError(t, err)
		}

		recs, err := store.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "2026-03-10", recs[0].Key)
		assert.Equal(t, "2026-03-02", recs[1].Key)

		empty, err := provider.Records(bio).List(ctx, 10)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("DeleteAbsentKeyIsNoOp", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		store := provider.Records(logs)
		ctx := context.Background()

		_, err := store.Put(ctx, newRecord(t, logs, "2026-04-01", nil))
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "2026-04-01"))
		require.NoError(t, store.Delete(ctx, "2026-04-01"))

		_, err = store.Get(ctx, "2026-04-01")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("SingletonKeepsJSONObject", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		ctx := context.Background()

		routine := map[string]any{"Mon": "run 5k", "Sun": "rest", "notes": map[string]any{"water": "2L"}}
		_, err := provider.Records(bio).Put(ctx, newRecord(t, bio, domain.SingletonKey, domain.Fields{
			"improvements": "sleep earlier",
			"routine":      routine,
		}))
		require.NoError(t, err)

		got, err := provider.Records(bio).Get(ctx, domain.SingletonKey)
		require.NoError(t, err)
		assert.Equal(t, "sleep earlier", got.Fields["improvements"])
		assert.Equal(t, routine, got.Fields["routine"])

		_, err = provider.Records(skin).Get(ctx, domain.SingletonKey)
		assert.ErrorIs(t, err, domain.ErrRecordNotFound, "sets sharing a key stay separate")
	})

	t.Run("NullJSONStaysNil", func(t *testing.T) {
		provider, teardown := setup(t)
		defer teardown()
		ctx := context.Background()

		put, err := provider.Records(skin).Put(ctx, newRecord(t, skin, domain.SingletonKey, domain.Fields{"skin_type": "dry"}))
		require.NoError(t, err)
		assert.Equal(t, "dry", put.Fields["skin_type"])
		assert.Nil(t, put.Fields["routine"])
	})
}
