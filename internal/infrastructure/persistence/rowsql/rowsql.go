// Package rowsql builds the statements that the SQL row stores run against
// collection tables. Table and column names come from a validated catalog
// and are the only identifiers interpolated into SQL; every value is bound
// as a parameter.
package rowsql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jyl/universe/internal/domain"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	name string

	// param renders the n-th (1-based) bind parameter.
	param func(n int) string

	// idColumn is the select expression that yields the id as text.
	idColumn string

	// EncodeTime converts a timestamp into a bind value.
	EncodeTime func(t time.Time) any

	// DecodeTime converts a scanned timestamp column back.
	DecodeTime func(v any) (time.Time, error)
}

// Name returns the dialect name.
func (d Dialect) Name() string { return d.name }

// Postgres stores ids as uuid and timestamps as timestamptz.
var Postgres = Dialect{
	name:     "postgres",
	param:    func(n int) string { return "$" + strconv.Itoa(n) },
	idColumn: "id::text",
	EncodeTime: func(t time.Time) any {
		return t.UTC()
	},
	DecodeTime: func(v any) (time.Time, error) {
		t, ok := v.(time.Time)
		if !ok {
			return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
		}
		return t.UTC(), nil
	},
}

// SQLite stores ids as text and timestamps as unix nanoseconds.
var SQLite = Dialect{
	name:     "sqlite",
	param:    func(int) string { return "?" },
	idColumn: "id",
	EncodeTime: func(t time.Time) any {
		return t.UTC().UnixNano()
	},
	DecodeTime: func(v any) (time.Time, error) {
		n, ok := v.(int64)
		if !ok {
			return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
		}
		return time.Unix(0, n).UTC(), nil
	},
}

// Table renders statements for one collection.
type Table struct {
	dialect Dialect
	coll    *domain.Collection
	fields  []string
	columns string
}

// NewTable prepares statements for coll. coll must have passed Validate.
func NewTable(d Dialect, coll *domain.Collection) *Table {
	t := &Table{dialect: d, coll: coll, fields: coll.FieldNames()}

	cols := []string{d.idColumn, "position"}
	if coll.Scoped() {
		cols = append(cols, coll.Scope.Column)
	}
	cols = append(cols, t.fields...)
	cols = append(cols, "created_at", "updated_at")
	t.columns = strings.Join(cols, ", ")

	return t
}

// Collection returns the collection the table was built for.
func (t *Table) Collection() *domain.Collection { return t.coll }

type args struct {
	d    Dialect
	vals []any
}

func (a *args) add(v any) string {
	a.vals = append(a.vals, v)
	return a.d.param(len(a.vals))
}

// List selects the rows of a scope in list order.
func (t *Table) List(scope string) (string, []any) {
	a := &args{d: t.dialect}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", t.columns, t.coll.Table)
	if t.coll.Scoped() {
		fmt.Fprintf(&b, " WHERE %s = %s", t.coll.Scope.Column, a.add(scope))
	}
	b.WriteString(" ORDER BY position ASC, created_at ASC, id ASC")

	return b.String(), a.vals
}

// Insert adds one row and returns it. An empty id leaves id generation to
// the column default.
func (t *Table) Insert(id string, row domain.Row, now time.Time) (string, []any) {
	a := &args{d: t.dialect}
	var cols, vals []string

	if id != "" {
		cols = append(cols, "id")
		vals = append(vals, a.add(id))
	}
	cols = append(cols, "position")
	vals = append(vals, a.add(row.Position))
	if t.coll.Scoped() {
		cols = append(cols, t.coll.Scope.Column)
		vals = append(vals, a.add(row.Scope))
	}
	for _, f := range t.fields {
		cols = append(cols, f)
		vals = append(vals, a.add(row.Fields[f]))
	}
	cols = append(cols, "created_at", "updated_at")
	ts := t.dialect.EncodeTime(now)
	vals = append(vals, a.add(ts), a.add(ts))

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		t.coll.Table, strings.Join(cols, ", "), strings.Join(vals, ", "), t.columns)
	return query, a.vals
}

// UpdateFields sets payload columns of one row. Column names are checked
// against the collection.
func (t *Table) UpdateFields(id string, fields domain.Fields, now time.Time) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("%w: empty update", domain.ErrInvalidFieldValue)
	}

	a := &args{d: t.dialect}
	var sets []string
	// Declaration order keeps the statement text stable.
	for _, f := range t.fields {
		v, ok := fields[f]
		if !ok {
			continue
		}
		sets = append(sets, f+" = "+a.add(v))
	}
	if len(sets) != len(fields) {
		for name := range fields {
			if _, ok := t.coll.Field(name); !ok {
				return "", nil, fmt.Errorf("%w: %s", domain.ErrUnknownField, name)
			}
		}
	}
	sets = append(sets, "updated_at = "+a.add(t.dialect.EncodeTime(now)))

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s",
		t.coll.Table, strings.Join(sets, ", "), a.add(id))
	return query, a.vals, nil
}

// Delete removes one row by id.
func (t *Table) Delete(id string) (string, []any) {
	a := &args{d: t.dialect}
	return fmt.Sprintf("DELETE FROM %s WHERE id = %s", t.coll.Table, a.add(id)), a.vals
}

// UpsertMany writes every row in one statement. Existing rows keep their
// created_at; absent ids are inserted.
func (t *Table) UpsertMany(rows []domain.Row, now time.Time) (string, []any) {
	a := &args{d: t.dialect}
	ts := t.dialect.EncodeTime(now)

	cols := []string{"id", "position"}
	if t.coll.Scoped() {
		cols = append(cols, t.coll.Scope.Column)
	}
	cols = append(cols, t.fields...)
	cols = append(cols, "created_at", "updated_at")

	tuples := make([]string, len(rows))
	for i, r := range rows {
		vals := []string{a.add(r.ID), a.add(r.Position)}
		if t.coll.Scoped() {
			vals = append(vals, a.add(r.Scope))
		}
		for _, f := range t.fields {
			vals = append(vals, a.add(r.Fields[f]))
		}
		vals = append(vals, a.add(ts), a.add(ts))
		tuples[i] = "(" + strings.Join(vals, ", ") + ")"
	}

	updates := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == "id" || c == "created_at" {
			continue
		}
		updates = append(updates, c+" = excluded."+c)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (id) DO UPDATE SET %s",
		t.coll.Table, strings.Join(cols, ", "), strings.Join(tuples, ", "), strings.Join(updates, ", "))
	return query, a.vals
}

// Dest returns fresh scan destinations for one selected row.
func (t *Table) Dest() []any {
	n := 4 + len(t.fields)
	if t.coll.Scoped() {
		n++
	}
	dest := make([]any, n)
	for i := range dest {
		dest[i] = new(any)
	}
	return dest
}

// Decode converts scanned destinations into a row. Payload values are
// normalized to the collection's field kinds; NULL stays nil.
func (t *Table) Decode(dest []any) (domain.Row, error) {
	vals := make([]any, len(dest))
	for i, d := range dest {
		vals[i] = *(d.(*any))
	}

	var row domain.Row
	i := 0

	id, err := text(vals[i])
	if err != nil {
		return row, fmt.Errorf("decode id: %w", err)
	}
	row.ID = id
	i++

	pos, err := integer(vals[i])
	if err != nil {
		return row, fmt.Errorf("decode position: %w", err)
	}
	row.Position = int(pos)
	i++

	if t.coll.Scoped() {
		if row.Scope, err = text(vals[i]); err != nil {
			return row, fmt.Errorf("decode %s: %w", t.coll.Scope.Column, err)
		}
		i++
	}

	row.Fields = make(domain.Fields, len(t.fields))
	for _, name := range t.fields {
		v := vals[i]
		i++
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if v == nil {
			row.Fields[name] = nil
			continue
		}
		spec, _ := t.coll.Field(name)
		nv, err := spec.Normalize(v)
		if err != nil {
			return row, fmt.Errorf("decode %s: %w", name, err)
		}
		row.Fields[name] = nv
	}

	if row.CreatedAt, err = t.dialect.DecodeTime(vals[i]); err != nil {
		return row, fmt.Errorf("decode created_at: %w", err)
	}
	if row.UpdatedAt, err = t.dialect.DecodeTime(vals[i+1]); err != nil {
		return row, fmt.Errorf("decode updated_at: %w", err)
	}

	return row, nil
}

func text(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", fmt.Errorf("unexpected text type %T", v)
}

func integer(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	}
	return 0, fmt.Errorf("unexpected integer type %T", v)
}
