package a

import "example.com/universe/internal/domain"

type other struct {
	Position int
}

func assign(rows []domain.Row) {
	rows[0].Position = 3 // want "Row.Position is written outside the reorder engine"
}

func pointer(r *domain.Row) {
	r.Position += 1 // want "Row.Position is written outside the reorder engine"
	r.Position++    // want "Row.Position is written outside the reorder engine"
}

func alias(r *domain.Row) *int {
	return &r.Position // want "Row.Position is written outside the reorder engine"
}

func multi(r *domain.Row) {
	var id string
	id, r.Position = "x", 1 // want "Row.Position is written outside the reorder engine"
	_ = id
}

func construct(pos int) domain.Row {
	return domain.Row{ID: "x", Position: pos}
}

func read(r domain.Row) int {
	return r.Position
}

func otherType(o *other) {
	o.Position = 1
}

func nolintGeneral(r *domain.Row) {
	//nolint
	r.Position = 0
}

func nolintSpecific(r *domain.Row) {
	r.Position = 0 //nolint:positionwrite
}

func nolintOtherLinter(r *domain.Row) {
	r.Position = 0 //nolint:errcheck // want "Row.Position is written outside the reorder engine"
}
