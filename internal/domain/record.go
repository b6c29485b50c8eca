package domain

import (
	"fmt"
	"time"
)

// SingletonKey is the key of the only record of a singleton set.
const SingletonKey = "default"

// singletonColumn holds SingletonKey in the table of a singleton set.
const singletonColumn = "id"

// KeySpec names the natural key column of a record set.
type KeySpec struct {
	Column string    `yaml:"column" json:"column"`
	Kind   FieldKind `yaml:"kind" json:"kind"` // date or text
}

// RecordSet describes a table of unordered records addressed by a natural
// key, such as one health log per day. A set without a key holds a single
// record.
type RecordSet struct {
	Name   string      `yaml:"name" json:"name"`
	Table  string      `yaml:"table" json:"table"`
	Key    *KeySpec    `yaml:"key" json:"key,omitempty"`
	Fields []FieldSpec `yaml:"fields" json:"fields"`
}

// Record is one entry of a record set.
type Record struct {
	Key       string
	Fields    Fields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Singleton reports whether the set holds exactly one record.
func (s *RecordSet) Singleton() bool {
	return s.Key == nil
}

// KeyColumn returns the column that stores the record key.
func (s *RecordSet) KeyColumn() string {
	if s.Key == nil {
		return singletonColumn
	}
	return s.Key.Column
}

// Field returns the spec of the named payload column.
func (s *RecordSet) Field(name string) (FieldSpec, bool) {
	return findField(s.Fields, name)
}

// FieldNames returns payload column names in declaration order.
func (s *RecordSet) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// NormalizeKey validates key and returns its canonical form. A singleton
// set accepts SingletonKey or the empty string.
func (s *RecordSet) NormalizeKey(key string) (string, error) {
	if s.Key == nil {
		if key == "" || key == SingletonKey {
			return SingletonKey, nil
		}
		return "", fmt.Errorf("%w: %s holds a single record keyed %q", ErrInvalidRecordKey, s.Name, SingletonKey)
	}
	if key == "" {
		return "", fmt.Errorf("%w: %s: %s is required", ErrInvalidRecordKey, s.Name, s.Key.Column)
	}
	spec := FieldSpec{Name: s.Key.Column, Kind: s.Key.Kind, Required: true, MaxLength: 255}
	if _, err := spec.Normalize(key); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRecordKey, err)
	}
	return key, nil
}

// NewRecordFields builds the payload of a stored record from input:
// missing columns take their defaults.
func (s *RecordSet) NewRecordFields(input Fields) (Fields, error) {
	return buildFields(s.Fields, input)
}

// NormalizePatch validates a partial update of a record.
func (s *RecordSet) NormalizePatch(patch Fields) (Fields, error) {
	return normalizePatch(s.Fields, patch)
}

// Validate checks the descriptor. Names are interpolated into SQL.
func (s *RecordSet) Validate() error {
	if !isIdentifier(s.Name) || !isIdentifier(s.Table) {
		return fmt.Errorf("%w: bad record set or table name %q/%q", ErrInvalidCatalog, s.Name, s.Table)
	}
	if s.Key != nil {
		if !isIdentifier(s.Key.Column) {
			return fmt.Errorf("%w: %s: bad key column %q", ErrInvalidCatalog, s.Name, s.Key.Column)
		}
		if s.Key.Kind != FieldDate && s.Key.Kind != FieldText {
			return fmt.Errorf("%w: %s: key kind must be date or text, got %q", ErrInvalidCatalog, s.Name, s.Key.Kind)
		}
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: %s: record set without fields", ErrInvalidCatalog, s.Name)
	}

	seen := map[string]bool{s.KeyColumn(): true}
	for _, f := range s.Fields {
		if f.Name == "created_at" || f.Name == "updated_at" {
			return fmt.Errorf("%w: %s: bad field name %q", ErrInvalidCatalog, s.Name, f.Name)
		}
		if err := validateFieldSpec(s.Name, f, seen); err != nil {
			return err
		}
	}
	return nil
}
