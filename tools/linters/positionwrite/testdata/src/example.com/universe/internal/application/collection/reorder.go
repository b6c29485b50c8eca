package collection

import "example.com/universe/internal/domain"

func renumber(rows []domain.Row) {
	for i := range rows {
		rows[i].Position = i
	}
}
