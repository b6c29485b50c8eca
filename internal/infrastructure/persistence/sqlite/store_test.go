package sqlite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/application/collection"
	"github.com/jyl/universe/internal/application/record"
	"github.com/jyl/universe/internal/catalog"
	"github.com/jyl/universe/internal/domain"
	"github.com/jyl/universe/internal/infrastructure/persistence/compliance"
)

// openTestStore opens a private in-memory database with every migration
// applied. The database disappears when the store closes.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:universe_%s?mode=memory&cache=shared", ulid.Make())
	store, err := Open(t.Context(), dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(t.Context()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRowStoreCompliance(t *testing.T) {
	compliance.RunRowStoreComplianceTest(t, func(t *testing.T) (collection.StoreProvider, func()) {
		return openTestStore(t), func() {}
	})
}

func TestSQLiteRecordStoreCompliance(t *testing.T) {
	compliance.RunRecordStoreComplianceTest(t, func(t *testing.T) (record.StoreProvider, func()) {
		return openTestStore(t), func() {}
	})
}

func TestSingletonTableRejectsOtherKeys(t *testing.T) {
	store := openTestStore(t)
	set, err := catalog.MustDefault().RecordSet("bio_config")
	require.NoError(t, err)

	fields, err := set.NewRecordFields(nil)
	require.NoError(t, err)
	_, err = store.Records(set).Put(context.Background(), domain.Record{Key: "2", Fields: fields})
	assert.ErrorIs(t, err, domain.ErrInvalidFieldValue)
}

func TestMigrationStatus(t *testing.T) {
	store := openTestStore(t)

	var buf bytes.Buffer
	require.NoError(t, store.MigrationStatus(context.Background(), &buf))
	assert.Contains(t, buf.String(), "00001_auth.sql")
	assert.Contains(t, buf.String(), "00002_collections.sql")
	assert.Contains(t, buf.String(), "00003_records.sql")
	assert.NotContains(t, buf.String(), "pending")
}

func TestListBeforeMigrateHintsAtMigrations(t *testing.T) {
	dsn := fmt.Sprintf("file:universe_%s?mode=memory&cache=shared", ulid.Make())
	store, err := Open(t.Context(), dsn)
	require.NoError(t, err)
	defer store.Close()

	coll := mustCollection(t, "todos")
	_, err = store.Rows(coll).List(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run migrations")
}

func TestRowTableRejectsMalformedIDs(t *testing.T) {
	store := openTestStore(t)
	rows := store.Rows(mustCollection(t, "todos"))
	ctx := context.Background()

	assert.ErrorIs(t, rows.UpdateFields(ctx, "42", domain.Fields{"completed": true}), domain.ErrInvalidID)
	assert.ErrorIs(t, rows.DeleteByID(ctx, "42"), domain.ErrInvalidID)
	assert.ErrorIs(t, rows.UpsertMany(ctx, []domain.Row{{ID: "42"}}), domain.ErrInvalidID)
}

func TestRowTableIsCachedPerCollection(t *testing.T) {
	store := openTestStore(t)
	coll := mustCollection(t, "books")
	assert.Same(t, store.RowTable(coll), store.RowTable(coll))
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("CreateAndFind", func(t *testing.T) {
		store := openTestStore(t)
		key := newKey("abc123def456", created)
		require.NoError(t, store.Create(ctx, key))

		got, err := store.FindByShortToken(ctx, "abc123def456")
		require.NoError(t, err)
		assert.Equal(t, key.ID, got.ID)
		assert.Equal(t, "ci", got.Name)
		assert.True(t, got.IsActive)
		assert.True(t, got.CreatedAt.Equal(created))
		assert.Nil(t, got.LastUsedAt)
		assert.Nil(t, got.ExpiresAt)
	})

	t.Run("UnknownTokenNotFound", func(t *testing.T) {
		store := openTestStore(t)
		_, err := store.FindByShortToken(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("InactiveKeyNotFound", func(t *testing.T) {
		store := openTestStore(t)
		key := newKey("inactive0000", created)
		key.IsActive = false
		require.NoError(t, store.Create(ctx, key))

		_, err := store.FindByShortToken(ctx, "inactive0000")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("DuplicateShortToken", func(t *testing.T) {
		store := openTestStore(t)
		require.NoError(t, store.Create(ctx, newKey("dup000000000", created)))

		err := store.Create(ctx, newKey("dup000000000", created))
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("CreateRejectsMalformedID", func(t *testing.T) {
		store := openTestStore(t)
		key := newKey("badid0000000", created)
		key.ID = "not-a-uuid"
		assert.ErrorIs(t, store.Create(ctx, key), domain.ErrInvalidID)
	})

	t.Run("UpdateLastUsedOnlyMovesForward", func(t *testing.T) {
		store := openTestStore(t)
		key := newKey("lastused0000", created)
		require.NoError(t, store.Create(ctx, key))

		later := created.Add(time.Hour)
		require.NoError(t, store.UpdateLastUsed(ctx, key.ID, later))
		require.NoError(t, store.UpdateLastUsed(ctx, key.ID, created.Add(time.Minute)))

		got, err := store.FindByShortToken(ctx, "lastused0000")
		require.NoError(t, err)
		require.NotNil(t, got.LastUsedAt)
		assert.True(t, got.LastUsedAt.Equal(later))
	})

	t.Run("UpdateLastUsedUnknownKey", func(t *testing.T) {
		store := openTestStore(t)
		err := store.UpdateLastUsed(ctx, uuid.NewString(), created)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*Store, *domain.APIKey) {
		store := openTestStore(t)
		key := newKey("session00000", start)
		require.NoError(t, store.Create(ctx, key))
		return store, key
	}

	newSession := func(key *domain.APIKey, at time.Time) *domain.Session {
		return &domain.Session{ID: uuid.NewString(), KeyID: key.ID, CreatedAt: at, LastActivityAt: at}
	}

	t.Run("CreateAndFind", func(t *testing.T) {
		store, key := setup(t)
		session := newSession(key, start)
		require.NoError(t, store.CreateSession(ctx, session))

		got, err := store.FindSession(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, key.ID, got.KeyID)
		assert.Equal(t, "ci", got.KeyName)
		assert.True(t, got.LastActivityAt.Equal(start))
		assert.Nil(t, got.RevokedAt)
	})

	t.Run("UnknownKeyViolatesForeignKey", func(t *testing.T) {
		store := openTestStore(t)
		session := &domain.Session{ID: uuid.NewString(), KeyID: uuid.NewString(), CreatedAt: start, LastActivityAt: start}
		assert.ErrorIs(t, store.CreateSession(ctx, session), domain.ErrNotFound)
	})

	t.Run("FindMissing", func(t *testing.T) {
		store := openTestStore(t)
		_, err := store.FindSession(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = store.FindSession(ctx, "garbage")
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("TouchMovesForwardOnly", func(t *testing.T) {
		store, key := setup(t)
		session := newSession(key, start)
		require.NoError(t, store.CreateSession(ctx, session))

		require.NoError(t, store.TouchSession(ctx, session.ID, start.Add(10*time.Minute)))
		require.NoError(t, store.TouchSession(ctx, session.ID, start.Add(5*time.Minute)))

		got, err := store.FindSession(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, got.LastActivityAt.Equal(start.Add(10*time.Minute)))
	})

	t.Run("RevokeKeepsFirstTime", func(t *testing.T) {
		store, key := setup(t)
		session := newSession(key, start)
		require.NoError(t, store.CreateSession(ctx, session))

		first := start.Add(time.Minute)
		require.NoError(t, store.RevokeSession(ctx, session.ID, first))
		require.NoError(t, store.RevokeSession(ctx, session.ID, first.Add(time.Hour)))
		require.NoError(t, store.TouchSession(ctx, session.ID, first.Add(2*time.Hour)))

		got, err := store.FindSession(ctx, session.ID)
		require.NoError(t, err)
		require.NotNil(t, got.RevokedAt)
		assert.True(t, got.RevokedAt.Equal(first))
		assert.True(t, got.LastActivityAt.Equal(start), "revoked sessions are not touched")
	})

	t.Run("RevokeIdleSessions", func(t *testing.T) {
		store, key := setup(t)
		idle := newSession(key, start)
		fresh := newSession(key, start.Add(50*time.Minute))
		require.NoError(t, store.CreateSession(ctx, idle))
		require.NoError(t, store.CreateSession(ctx, fresh))

		now := start.Add(time.Hour)
		n, err := store.RevokeIdleSessions(ctx, now.Add(-30*time.Minute), now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := store.FindSession(ctx, idle.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.RevokedAt)

		got, err = store.FindSession(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Nil(t, got.RevokedAt)

		n, err = store.RevokeIdleSessions(ctx, now.Add(-30*time.Minute), now)
		require.NoError(t, err)
		assert.Zero(t, n, "already revoked sessions are skipped")
	})
}

func TestExecuteInTransactionRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := store.executeInTransaction(ctx, "test", func(tx *Store) error {
		require.NoError(t, tx.Create(ctx, newKey("rollback0000", created)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.FindByShortToken(ctx, "rollback0000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func mustCollection(t *testing.T, name string) *domain.Collection {
	t.Helper()
	coll, err := catalog.MustDefault().Get(name)
	require.NoError(t, err)
	return coll
}

func newKey(shortToken string, created time.Time) *domain.APIKey {
	return &domain.APIKey{
		ID:             uuid.NewString(),
		KeyType:        "sk",
		Service:        "universe",
		Version:        "v1",
		ShortToken:     shortToken,
		LongSecretHash: "hash",
		Name:           "ci",
		IsActive:       true,
		CreatedAt:      created,
	}
}
