package domain

import "fmt"

// validateFieldSpec checks one payload column of owner. seen collects
// column names to catch duplicates.
func validateFieldSpec(owner string, f FieldSpec, seen map[string]bool) error {
	if !isIdentifier(f.Name) {
		return fmt.Errorf("%w: %s: bad field name %q", ErrInvalidCatalog, owner, f.Name)
	}
	if seen[f.Name] {
		return fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidCatalog, owner, f.Name)
	}
	seen[f.Name] = true

	switch f.Kind {
	case FieldText, FieldBool, FieldInt, FieldTime, FieldDate, FieldNumber, FieldJSON:
	case FieldEnum:
		if len(f.Values) == 0 {
			return fmt.Errorf("%w: %s.%s: enum without values", ErrInvalidCatalog, owner, f.Name)
		}
	default:
		return fmt.Errorf("%w: %s.%s: unknown kind %q", ErrInvalidCatalog, owner, f.Name, f.Kind)
	}

	if f.Default != nil {
		if _, err := f.Normalize(f.Default); err != nil {
			return fmt.Errorf("%w: %s.%s: default: %w", ErrInvalidCatalog, owner, f.Name, err)
		}
	}
	return nil
}

func findField(specs []FieldSpec, name string) (FieldSpec, bool) {
	for _, f := range specs {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// buildFields applies defaults for missing columns and normalizes every
// value. Unknown columns are rejected.
func buildFields(specs []FieldSpec, input Fields) (Fields, error) {
	for name := range input {
		if _, ok := findField(specs, name); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
	}
	out := make(Fields, len(specs))
	for _, f := range specs {
		v, ok := input[f.Name]
		if !ok {
			v = f.Default
		}
		nv, err := f.Normalize(v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = nv
	}
	return out, nil
}

// normalizePatch validates a partial update. Only named columns are touched.
func normalizePatch(specs []FieldSpec, patch Fields) (Fields, error) {
	out := make(Fields, len(patch))
	for name, v := range patch {
		f, ok := findField(specs, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		nv, err := f.Normalize(v)
		if err != nil {
			return nil, err
		}
		out[name] = nv
	}
	return out, nil
}
