// Package compliance holds the behaviour every snapshot.Sink
// implementation must share.
package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/application/snapshot"
	"github.com/jyl/universe/internal/domain"
)

// RunSinkComplianceTest runs a standard set of tests against a Sink.
// setup returns a fresh (empty) sink and a cleanup func.
func RunSinkComplianceTest(t *testing.T, setup func() (snapshot.Sink, func())) {
	newSnapshot := func(takenAt time.Time, texts ...string) *domain.Snapshot {
		snap := &domain.Snapshot{
			SnapshotInfo: domain.SnapshotInfo{
				ID:         ulid.MustNew(ulid.Timestamp(takenAt), ulid.DefaultEntropy()).String(),
				Collection: "todos",
				TakenAt:    takenAt.UTC().Truncate(time.Millisecond),
				RowCount:   len(texts),
			},
			Rows: []domain.SnapshotRow{},
		}
		for i, text := range texts {
			snap.Rows = append(snap.Rows, domain.SnapshotRow{
				ID:        ulid.Make().String(),
				Position:  i,
				Fields:    domain.Fields{"text": text, "completed": i%2 == 0, "rank": int64(i)},
				CreatedAt: snap.TakenAt,
				UpdatedAt: snap.TakenAt,
			})
		}
		return snap
	}

	t.Run("PutAndGet", func(t *testing.T) {
		sink, teardown := setup()
		defer teardown()
		ctx := context.Background()

		snap := newSnapshot(time.Now(), "a", "b")
		require.NoError(t, sink.Put(ctx, snap))

		fetched, err := sink.Get(ctx, snap.ID)
		require.NoError(t, err)
		assert.Equal(t, snap.SnapshotInfo.ID, fetched.ID)
		assert.Equal(t, snap.Collection, fetched.Collection)
		assert.True(t, snap.TakenAt.Equal(fetched.TakenAt))
		require.Len(t, fetched.Rows, 2)
		assert.Equal(t, snap.Rows[1].Fields, fetched.Rows[1].Fields)
	})

	t.Run("PutTwiceFails", func(t *testing.T) {
		sink, teardown := setup()
		defer teardown()
		ctx := context.Background()

		snap := newSnapshot(time.Now(), "a")
		require.NoError(t, sink.Put(ctx, snap))
		assert.ErrorIs(t, sink.Put(ctx, snap), domain.ErrAlreadyExists)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		sink, teardown := setup()
		defer teardown()
		ctx := context.Background()

		base := time.Now()
		older := newSnapshot(base.Add(-time.Hour), "a")
		newer := newSnapshot(base, "b", "c")
		require.NoError(t, sink.Put(ctx, older))
		require.NoError(t, sink.Put(ctx, newer))

		infos, err := sink.List(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, newer.ID, infos[0].ID)
		assert.Equal(t, 2, infos[0].RowCount)
		assert.Equal(t, older.ID, infos[1].ID)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		sink, teardown := setup()
		defer teardown()

		infos, err := sink.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("GetMissing", func(t *testing.T) {
		sink, teardown := setup()
		defer teardown()

		_, err := sink.Get(context.Background(), ulid.Make().String())
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("RejectsMalformedIDs", func(t *testing.T) {
		sink, teardown := setup()
		defer teardown()
		ctx := context.Background()

		_, err := sink.Get(ctx, "../outside")
		assert.ErrorIs(t, err, domain.ErrInvalidID)

		snap := newSnapshot(time.Now(), "a")
		snap.ID = "../outside"
		assert.ErrorIs(t, sink.Put(ctx, snap), domain.ErrInvalidID)
	})
}
