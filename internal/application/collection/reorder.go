package collection

import (
	"fmt"

	"github.com/jyl/universe/internal/domain"
)

// Reorder moves the row at source to destination and renumbers every
// position to its new index.
//
// The input slice is never modified. When source equals destination the
// input is returned as is and callers must not dispatch a sync.
func Reorder(rows []domain.Row, source, destination int) ([]domain.Row, error) {
	n := len(rows)
	if source < 0 || source >= n || destination < 0 || destination >= n {
		return nil, fmt.Errorf("%w: source=%d destination=%d len=%d", domain.ErrIndexOutOfRange, source, destination, n)
	}
	if source == destination {
		return rows, nil
	}

	out := make([]domain.Row, 0, n)
	out = append(out, rows[:source]...)
	out = append(out, rows[source+1:]...)
	moved := rows[source]

	out = append(out, domain.Row{})
	copy(out[destination+1:], out[destination:])
	out[destination] = moved

	renumber(out)
	return out, nil
}

// renumber rewrites positions to 0..n-1 in slice order.
func renumber(rows []domain.Row) {
	for i := range rows {
		rows[i].Position = i
	}
}

// NextPosition returns the position for a newly appended row:
// one past the largest existing position, or 0 for an empty list.
// It is computed from the local copy only, so two writers appending
// concurrently against stale copies can pick the same value.
func NextPosition(rows []domain.Row) int {
	if len(rows) == 0 {
		return 0
	}
	highest := rows[0].Position
	for _, r := range rows[1:] {
		highest = max(highest, r.Position)
	}
	return highest + 1
}

// IsDense reports whether positions are exactly 0..n-1 in slice order.
func IsDense(rows []domain.Row) bool {
	for i, r := range rows {
		if r.Position != i {
			return false
		}
	}
	return true
}
