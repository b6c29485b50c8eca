package snapshot

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/domain"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return t
}

func weeklyPlanSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		SnapshotInfo: domain.SnapshotInfo{
			ID:         "01JNF3Q6Y0ABCDEFGHJKMNPQRS",
			Collection: "weekly_plan",
			Scope:      "Mon",
			TakenAt:    at("2025-03-03T08:00:00Z"),
			RowCount:   2,
		},
		Rows: []domain.SnapshotRow{
			{
				ID:        "01955a1e-0000-7000-8000-000000000001",
				Position:  0,
				Fields:    domain.Fields{"content": "stretch", "is_done": false},
				CreatedAt: at("2025-03-01T09:00:00Z"),
				UpdatedAt: at("2025-03-01T09:00:00Z"),
			},
			{
				ID:        "01955a1e-0000-7000-8000-000000000002",
				Position:  1,
				Fields:    domain.Fields{"content": "review budget", "is_done": true},
				CreatedAt: at("2025-03-01T09:05:00Z"),
				UpdatedAt: at("2025-03-02T18:30:15.5Z"),
			},
		},
	}
}

func skinReviewsSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		SnapshotInfo: domain.SnapshotInfo{
			ID:         "01JNF3Q6Y0ABCDEFGHJKMNPQRT",
			Collection: "skin_reviews",
			TakenAt:    at("2025-03-03T08:00:00Z"),
			RowCount:   1,
		},
		Rows: []domain.SnapshotRow{{
			ID:       "01955a1e-0000-7000-8000-000000000003",
			Position: 0,
			Fields: domain.Fields{
				"category":   "Sunscreen",
				"name":       "daily fluid",
				"rating":     int64(5),
				"repurchase": true,
				"review":     "",
			},
			CreatedAt: at("2025-03-01T09:00:00Z"),
			UpdatedAt: at("2025-03-01T09:00:00Z"),
		}},
	}
}

func TestEncodeGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	tests := []struct {
		name string
		snap *domain.Snapshot
	}{
		{"weekly_plan_mon", weeklyPlanSnapshot()},
		{"skin_reviews", skinReviewsSnapshot()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.snap)
			require.NoError(t, err)
			g.Assert(t, tt.name, data)
		})
	}
}

func TestDecodeRestoresIntegers(t *testing.T) {
	data, err := Encode(skinReviewsSnapshot())
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Rows[0].Fields["rating"])
	assert.Equal(t, true, got.Rows[0].Fields["repurchase"])
	assert.True(t, got.TakenAt.Equal(at("2025-03-03T08:00:00Z")))
	assert.Equal(t, skinReviewsSnapshot().Rows, got.Rows)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestIDFromObjectName(t *testing.T) {
	tests := []struct {
		name   string
		wantID string
		wantOK bool
	}{
		{"01JNF3Q6Y0ABCDEFGHJKMNPQRS.json", "01JNF3Q6Y0ABCDEFGHJKMNPQRS", true},
		{"snapshots/01JNF3Q6Y0ABCDEFGHJKMNPQRS.json", "01JNF3Q6Y0ABCDEFGHJKMNPQRS", true},
		{"01JNF3Q6Y0ABCDEFGHJKMNPQRS.txt", "", false},
		{"notes.json", "", false},
		{".json", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := IDFromObjectName(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestSortNewestFirst(t *testing.T) {
	infos := []domain.SnapshotInfo{
		{ID: "01JNF3Q6Y0ABCDEFGHJKMNPQRS"},
		{ID: "01JNF3Q6Y1ABCDEFGHJKMNPQRS"},
		{ID: "01JNF3Q6XZABCDEFGHJKMNPQRS"},
	}
	SortNewestFirst(infos)
	assert.Equal(t, "01JNF3Q6Y1ABCDEFGHJKMNPQRS", infos[0].ID)
	assert.Equal(t, "01JNF3Q6XZABCDEFGHJKMNPQRS", infos[2].ID)
}
