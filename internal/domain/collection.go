package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldKind is the value type of a collection column.
type FieldKind string

const (
	FieldText   FieldKind = "text"
	FieldBool   FieldKind = "bool"
	FieldInt    FieldKind = "int"
	FieldEnum   FieldKind = "enum"
	FieldTime   FieldKind = "time" // HH:MM
	FieldDate   FieldKind = "date" // YYYY-MM-DD
	FieldNumber FieldKind = "number"
	FieldJSON   FieldKind = "json" // JSON object; record sets only
)

// FieldSpec describes one payload column of a collection.
type FieldSpec struct {
	Name      string    `yaml:"name" json:"name"`
	Kind      FieldKind `yaml:"kind" json:"kind"`
	Required  bool      `yaml:"required" json:"required"`
	Editable  bool      `yaml:"editable" json:"editable"`
	MaxLength int       `yaml:"max_length" json:"max_length,omitempty"`
	Min       *int64    `yaml:"min" json:"min,omitempty"`
	Max       *int64    `yaml:"max" json:"max,omitempty"`
	Values    []string  `yaml:"values" json:"values,omitempty"`
	Default   any       `yaml:"default" json:"default,omitempty"`
}

// ScopeSpec partitions a collection into independently ordered lists.
type ScopeSpec struct {
	Column string   `yaml:"column" json:"column"`
	Values []string `yaml:"values" json:"values"`
}

// Collection describes a backend table managed as ordered lists.
type Collection struct {
	Name        string      `yaml:"name" json:"name"`
	Table       string      `yaml:"table" json:"table"`
	Scope       *ScopeSpec  `yaml:"scope" json:"scope,omitempty"`
	TitleField  string      `yaml:"title_field" json:"title_field"`
	ToggleField string      `yaml:"toggle_field" json:"toggle_field,omitempty"`
	Fields      []FieldSpec `yaml:"fields" json:"fields"`
}

// Field returns the spec of the named payload column.
func (c *Collection) Field(name string) (FieldSpec, bool) {
	return findField(c.Fields, name)
}

// FieldNames returns payload column names in declaration order.
func (c *Collection) FieldNames() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// Scoped reports whether the collection is partitioned by a scope column.
func (c *Collection) Scoped() bool {
	return c.Scope != nil
}

// ValidateScope checks scope against the collection's scope values.
func (c *Collection) ValidateScope(scope string) error {
	if c.Scope == nil {
		if scope != "" {
			return fmt.Errorf("%w: %s", ErrScopeNotSupported, c.Name)
		}
		return nil
	}
	if scope == "" {
		return fmt.Errorf("%w: %s", ErrScopeRequired, c.Name)
	}
	if !slices.Contains(c.Scope.Values, scope) {
		return fmt.Errorf("%w: %q (allowed: %s)", ErrInvalidScope, scope, strings.Join(c.Scope.Values, ", "))
	}
	return nil
}

// Validate checks the descriptor itself. Column names must be plain
// lower-case identifiers so they can be interpolated into SQL.
func (c *Collection) Validate() error {
	if !isIdentifier(c.Name) || !isIdentifier(c.Table) {
		return fmt.Errorf("%w: bad collection or table name %q/%q", ErrInvalidCatalog, c.Name, c.Table)
	}
	if c.Scope != nil {
		if !isIdentifier(c.Scope.Column) || len(c.Scope.Values) == 0 {
			return fmt.Errorf("%w: %s: scope needs a column and values", ErrInvalidCatalog, c.Name)
		}
	}
	seen := map[string]bool{}
	if c.Scope != nil {
		seen[c.Scope.Column] = true
	}
	for _, f := range c.Fields {
		if reservedColumn(f.Name) {
			return fmt.Errorf("%w: %s: bad field name %q", ErrInvalidCatalog, c.Name, f.Name)
		}
		if f.Kind == FieldJSON {
			return fmt.Errorf("%w: %s.%s: json fields are not supported in ordered collections", ErrInvalidCatalog, c.Name, f.Name)
		}
		if err := validateFieldSpec(c.Name, f, seen); err != nil {
			return err
		}
	}
	title, ok := c.Field(c.TitleField)
	if !ok || title.Kind != FieldText {
		return fmt.Errorf("%w: %s: title field %q must be a text field", ErrInvalidCatalog, c.Name, c.TitleField)
	}
	if c.ToggleField != "" {
		toggle, ok := c.Field(c.ToggleField)
		if !ok || (toggle.Kind != FieldBool && toggle.Kind != FieldEnum) {
			return fmt.Errorf("%w: %s: toggle field %q must be bool or enum", ErrInvalidCatalog, c.Name, c.ToggleField)
		}
	}
	return nil
}

// NewRowFields builds the payload of a new row: defaults are applied for
// missing columns and every value is normalized.
func (c *Collection) NewRowFields(input Fields) (Fields, error) {
	return buildFields(c.Fields, input)
}

// NormalizePatch validates a partial update. Only named columns are touched.
func (c *Collection) NormalizePatch(patch Fields) (Fields, error) {
	return normalizePatch(c.Fields, patch)
}

// EditableFields returns the subset of fields that the edit-in-place
// controller copies into its scratch buffer.
func (c *Collection) EditableFields(fields Fields) Fields {
	out := Fields{}
	for _, f := range c.Fields {
		if f.Editable {
			out[f.Name] = fields[f.Name]
		}
	}
	return out
}

// ToggleValue returns the next value of the toggle column: a bool flips,
// an enum advances to its next value and wraps around.
func (c *Collection) ToggleValue(current any) (any, error) {
	f, ok := c.Field(c.ToggleField)
	if c.ToggleField == "" || !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotToggleable, c.Name)
	}
	switch f.Kind {
	case FieldBool:
		b, _ := current.(bool)
		return !b, nil
	case FieldEnum:
		s, _ := current.(string)
		i := slices.Index(f.Values, s)
		return f.Values[(i+1)%len(f.Values)], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotToggleable, c.Name)
	}
}

// Normalize converts v into the canonical Go type for the column.
// Accepts JSON-decoded values (float64 numbers) and driver values
// (int32/int64 integers, 0/1 booleans from SQLite).
func (f FieldSpec) Normalize(v any) (any, error) {
	if v == nil {
		if f.Required {
			return nil, fmt.Errorf("%w: %s", ErrFieldRequired, f.Name)
		}
		return nil, nil
	}

	invalid := func(reason string) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidFieldValue, f.Name, reason)
	}

	switch f.Kind {
	case FieldText:
		s, ok := v.(string)
		if !ok {
			return nil, invalid("expected string")
		}
		if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
			return nil, invalid(fmt.Sprintf("longer than %d characters", f.MaxLength))
		}
		return s, nil

	case FieldEnum:
		s, ok := v.(string)
		if !ok || !slices.Contains(f.Values, s) {
			return nil, invalid("expected one of " + strings.Join(f.Values, ", "))
		}
		return s, nil

	case FieldBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		case int:
			return b != 0, nil
		}
		return nil, invalid("expected boolean")

	case FieldInt:
		var n int64
		switch x := v.(type) {
		case int:
			n = int64(x)
		case int32:
			n = int64(x)
		case int64:
			n = x
		case float64:
			if x != math.Trunc(x) || math.IsInf(x, 0) || math.Abs(x) > 1<<53 {
				return nil, invalid("expected integer")
			}
			n = int64(x)
		default:
			return nil, invalid("expected integer")
		}
		if f.Min != nil && n < *f.Min {
			return nil, invalid(fmt.Sprintf("must be at least %d", *f.Min))
		}
		if f.Max != nil && n > *f.Max {
			return nil, invalid(fmt.Sprintf("must be at most %d", *f.Max))
		}
		return n, nil

	case FieldTime:
		s, ok := v.(string)
		if !ok {
			return nil, invalid("expected HH:MM")
		}
		if _, err := time.Parse("15:04", s); err != nil {
			return nil, invalid("expected HH:MM")
		}
		return s, nil

	case FieldDate:
		s, ok := v.(string)
		if !ok {
			return nil, invalid("expected YYYY-MM-DD")
		}
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return nil, invalid("expected YYYY-MM-DD")
		}
		return s, nil

	case FieldNumber:
		var x float64
		switch n := v.(type) {
		case float64:
			x = n
		case float32:
			x = float64(n)
		case int:
			x = float64(n)
		case int32:
			x = float64(n)
		case int64:
			x = float64(n)
		default:
			return nil, invalid("expected number")
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, invalid("expected finite number")
		}
		return x, nil

	case FieldJSON:
		// Drivers hand back JSON columns as text or bytes.
		switch raw := v.(type) {
		case map[string]any:
			return raw, nil
		case string:
			v = []byte(raw)
		}
		if raw, ok := v.([]byte); ok {
			var obj map[string]any
			if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
				return nil, invalid("expected JSON object")
			}
			return obj, nil
		}
		return nil, invalid("expected JSON object")
	}

	return nil, invalid("unsupported kind " + string(f.Kind))
}

func isIdentifier(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func reservedColumn(name string) bool {
	switch name {
	case "id", "position", "created_at", "updated_at":
		return true
	}
	return false
}
