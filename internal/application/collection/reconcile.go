package collection

import (
	"github.com/jyl/universe/internal/domain"
)

// Divergence describes how a local list differed from the row store when
// a reconciliation re-fetch completed.
type Divergence struct {
	Missing    []string `json:"missing"`    // local rows the store does not have
	Unexpected []string `json:"unexpected"` // store rows the local list did not have
	Changed    []string `json:"changed"`    // rows whose position or payload differ
}

// Size is the number of rows that differed.
func (d Divergence) Size() int {
	return len(d.Missing) + len(d.Unexpected) + len(d.Changed)
}

func diffRows(local, remote []domain.Row) Divergence {
	d := Divergence{Missing: []string{}, Unexpected: []string{}, Changed: []string{}}

	byID := make(map[string]domain.Row, len(remote))
	for _, r := range remote {
		byID[r.ID] = r
	}

	seen := make(map[string]bool, len(local))
	for _, l := range local {
		seen[l.ID] = true
		r, ok := byID[l.ID]
		if !ok {
			d.Missing = append(d.Missing, l.ID)
			continue
		}
		if l.Position != r.Position || !fieldsEqual(l.Fields, r.Fields) {
			d.Changed = append(d.Changed, l.ID)
		}
	}

	for _, r := range remote {
		if !seen[r.ID] {
			d.Unexpected = append(d.Unexpected, r.ID)
		}
	}

	return d
}

func fieldsEqual(a, b domain.Fields) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
