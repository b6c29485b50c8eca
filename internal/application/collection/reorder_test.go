package collection

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/domain"
)

func rowsOf(ids ...string) []domain.Row {
	rows := make([]domain.Row, len(ids))
	for i, id := range ids {
		rows[i] = domain.Row{ID: id, Position: i, Fields: domain.Fields{"title": id}}
	}
	return rows
}

func idsOf(rows []domain.Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

func TestReorder_MoveForward(t *testing.T) {
	out, err := Reorder(rowsOf("A", "B", "C", "D"), 0, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C", "A", "D"}, idsOf(out))
	assert.True(t, IsDense(out))
}

func TestReorder_LastToFirst(t *testing.T) {
	out, err := Reorder(rowsOf("X", "Y", "Z"), 2, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"Z", "X", "Y"}, idsOf(out))
	assert.True(t, IsDense(out))
}

func TestReorder_SameIndexReturnsInput(t *testing.T) {
	in := rowsOf("A", "B", "C")
	out, err := Reorder(in, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, in, out)
	assert.Same(t, &in[0], &out[0], "no-op move must not copy")
}

func TestReorder_DoesNotMutateInput(t *testing.T) {
	in := rowsOf("A", "B", "C")
	snapshot := slices.Clone(in)

	_, err := Reorder(in, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, snapshot, in)
}

func TestReorder_OutOfRange(t *testing.T) {
	rows := rowsOf("A", "B")
	for _, tc := range [][2]int{{-1, 0}, {0, 2}, {2, 0}, {0, -1}} {
		_, err := Reorder(rows, tc[0], tc[1])
		assert.ErrorIs(t, err, domain.ErrIndexOutOfRange, "source=%d destination=%d", tc[0], tc[1])
	}

	_, err := Reorder(nil, 0, 0)
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
}

// Exhaustive check over every (source, destination) pair for small lists,
// starting from gapped positions to cover lists that had deletions.
func TestReorder_AllMoves(t *testing.T) {
	for n := 1; n <= 6; n++ {
		base := make([]domain.Row, n)
		for i := range base {
			base[i] = domain.Row{ID: fmt.Sprintf("r%d", i), Position: i * 3}
		}

		for s := range n {
			for d := range n {
				out, err := Reorder(base, s, d)
				require.NoError(t, err)

				if s == d {
					assert.Equal(t, base, out)
					continue
				}

				assert.True(t, IsDense(out), "n=%d s=%d d=%d", n, s, d)
				assert.ElementsMatch(t, idsOf(base), idsOf(out))
				assert.Equal(t, base[s].ID, out[d].ID)

				rest := slices.Delete(slices.Clone(idsOf(base)), s, s+1)
				restOut := slices.Delete(slices.Clone(idsOf(out)), d, d+1)
				assert.Equal(t, rest, restOut, "relative order of unmoved rows")
			}
		}
	}
}

func TestReorder_AfterDeleteRestoresDensity(t *testing.T) {
	rows := rowsOf("A", "B", "C", "D")
	rows = slices.Delete(rows, 1, 2)
	assert.False(t, IsDense(rows))

	out, err := Reorder(rows, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "A", "C"}, idsOf(out))
	assert.True(t, IsDense(out))
}

func TestNextPosition(t *testing.T) {
	assert.Equal(t, 0, NextPosition(nil))
	assert.Equal(t, 4, NextPosition(rowsOf("A", "B", "C", "D")))

	gapped := []domain.Row{{ID: "a", Position: 0}, {ID: "b", Position: 7}, {ID: "c", Position: 2}}
	assert.Equal(t, 8, NextPosition(gapped))
}
