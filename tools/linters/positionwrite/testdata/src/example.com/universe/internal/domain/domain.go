package domain

type Row struct {
	ID       string
	Position int
}

func (r *Row) moveTo(pos int) {
	r.Position = pos
}
