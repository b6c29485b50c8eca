package rowsql

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jyl/universe/internal/domain"
)

// RecordTable renders statements for one record set. JSON columns are
// bound as their encoded text.
type RecordTable struct {
	dialect Dialect
	set     *domain.RecordSet
	key     string
	fields  []string
	columns string
}

// NewRecordTable prepares statements for set. set must have passed Validate.
func NewRecordTable(d Dialect, set *domain.RecordSet) *RecordTable {
	t := &RecordTable{dialect: d, set: set, key: set.KeyColumn(), fields: set.FieldNames()}

	cols := append([]string{t.key}, t.fields...)
	cols = append(cols, "created_at", "updated_at")
	t.columns = strings.Join(cols, ", ")
	return t
}

// Set returns the record set the table was built for.
func (t *RecordTable) Set() *domain.RecordSet { return t.set }

// Get selects one record by key.
func (t *RecordTable) Get(key string) (string, []any) {
	a := &args{d: t.dialect}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", t.columns, t.set.Table, t.key, a.add(key)), a.vals
}

// List selects up to limit records, newest key first.
func (t *RecordTable) List(limit int) (string, []any) {
	a := &args{d: t.dialect}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC LIMIT %s",
		t.columns, t.set.Table, t.key, a.add(limit)), a.vals
}

// Put upserts one record on its key and returns it. A replaced record
// keeps created_at.
func (t *RecordTable) Put(rec domain.Record, now time.Time) (string, []any, error) {
	a := &args{d: t.dialect}
	vals := []string{a.add(rec.Key)}
	updates := make([]string, 0, len(t.fields)+1)

	for _, name := range t.fields {
		v, err := t.encode(name, rec.Fields[name])
		if err != nil {
			return "", nil, err
		}
		vals = append(vals, a.add(v))
		updates = append(updates, name+" = excluded."+name)
	}
	ts := t.dialect.EncodeTime(now)
	vals = append(vals, a.add(ts), a.add(ts))
	updates = append(updates, "updated_at = excluded.updated_at")

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING %s",
		t.set.Table, t.columns, strings.Join(vals, ", "), t.key, strings.Join(updates, ", "), t.columns)
	return query, a.vals, nil
}

// Delete removes one record by key.
func (t *RecordTable) Delete(key string) (string, []any) {
	a := &args{d: t.dialect}
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", t.set.Table, t.key, a.add(key)), a.vals
}

func (t *RecordTable) encode(name string, v any) (any, error) {
	spec, _ := t.set.Field(name)
	if spec.Kind != domain.FieldJSON || v == nil {
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidFieldValue, name, err)
	}
	return string(raw), nil
}

// Dest returns fresh scan destinations for one selected record.
func (t *RecordTable) Dest() []any {
	dest := make([]any, 3+len(t.fields))
	for i := range dest {
		dest[i] = new(any)
	}
	return dest
}

// Decode converts scanned destinations into a record.
func (t *RecordTable) Decode(dest []any) (domain.Record, error) {
	vals := make([]any, len(dest))
	for i, d := range dest {
		vals[i] = *(d.(*any))
	}

	var rec domain.Record
	key, err := text(vals[0])
	if err != nil {
		return rec, fmt.Errorf("decode %s: %w", t.key, err)
	}
	rec.Key = key

	rec.Fields = make(domain.Fields, len(t.fields))
	for i, name := range t.fields {
		v := vals[i+1]
		if v == nil {
			rec.Fields[name] = nil
			continue
		}
		spec, _ := t.set.Field(name)
		nv, err := spec.Normalize(v)
		if err != nil {
			return rec, fmt.Errorf("decode %s: %w", name, err)
		}
		rec.Fields[name] = nv
	}

	n := len(t.fields) + 1
	if rec.CreatedAt, err = t.dialect.DecodeTime(vals[n]); err != nil {
		return rec, fmt.Errorf("decode created_at: %w", err)
	}
	if rec.UpdatedAt, err = t.dialect.DecodeTime(vals[n+1]); err != nil {
		return rec, fmt.Errorf("decode updated_at: %w", err)
	}
	return rec, nil
}
