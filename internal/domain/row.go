package domain

import (
	"maps"
	"time"
)

// Fields is the feature payload of a row, keyed by column name.
// Values are normalized to string, bool, int64 or nil.
type Fields map[string]any

// Clone returns a shallow copy of the fields.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// Merge returns a copy of f with patch applied on top.
func (f Fields) Merge(patch Fields) Fields {
	out := f.Clone()
	maps.Copy(out, patch)
	return out
}

// Changed returns the entries of patch whose values differ from f.
func (f Fields) Changed(patch Fields) Fields {
	out := Fields{}
	for k, v := range patch {
		if cur, ok := f[k]; !ok || cur != v {
			out[k] = v
		}
	}
	return out
}

// Row is one record of an ordered collection.
//
// Position is dense and zero-based within a scope after a successful sync.
// It is only ever rewritten by the reorder engine; every other mutation
// builds a new Row value that carries the existing position forward.
type Row struct {
	ID        string
	Position  int
	Scope     string
	Fields    Fields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithFields returns a copy of the row with patch merged into its fields.
func (r Row) WithFields(patch Fields) Row {
	r.Fields = r.Fields.Merge(patch)
	return r
}

// WithID returns a copy of the row carrying a different id.
func (r Row) WithID(id string) Row {
	r.ID = id
	return r
}
