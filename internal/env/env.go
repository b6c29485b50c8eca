// Package env fills config structs from environment variables.
//
// A field is loaded when it carries an `env:"NAME"` tag. A `default:"..."`
// tag applies only when NAME is unset; a set but empty variable is kept.
// Nested structs are walked and, when they implement Validator, validated
// right after loading. Supported field types are string, bool, int, int64,
// time.Duration and []string (comma separated, blanks dropped).
package env

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedType is reported for a tagged field of any other type.
var ErrUnsupportedType = errors.New("unsupported field type")

// Validator is implemented by config structs that check themselves.
type Validator interface {
	Validate() error
}

// VarError reports a variable whose value could not be parsed.
type VarError struct {
	Name  string
	Value string
	Err   error
}

func (e *VarError) Error() string {
	return fmt.Sprintf("invalid %s=%q: %v", e.Name, e.Value, e.Err)
}

func (e *VarError) Unwrap() error { return e.Err }

// LookupFunc resolves one variable, like os.LookupEnv.
type LookupFunc func(name string) (string, bool)

// Load fills the struct v points to from the process environment. Every
// unparsable variable and failed validation is reported in one joined error.
func Load(v any) error {
	return LoadFrom(os.LookupEnv, v)
}

// LoadFrom is Load over an arbitrary lookup.
func LoadFrom(lookup LookupFunc, v any) error {
	ptr := reflect.ValueOf(v)
	if ptr.Kind() != reflect.Pointer || ptr.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("env: want a pointer to a struct, got %T", v)
	}
	if err := load(lookup, ptr.Elem()); err != nil {
		return err
	}
	if val, ok := v.(Validator); ok {
		return val.Validate()
	}
	return nil
}

func load(lookup LookupFunc, val reflect.Value) error {
	var errs []error
	typ := val.Type()

	for i := range val.NumField() {
		field, sf := val.Field(i), typ.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := load(lookup, field); err != nil {
				errs = append(errs, err)
				continue
			}
			if val, ok := field.Addr().Interface().(Validator); ok {
				if err := val.Validate(); err != nil {
					errs = append(errs, err)
				}
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := lookup(name)
		if !ok {
			if raw, ok = sf.Tag.Lookup("default"); !ok {
				continue
			}
		}
		if err := set(field, raw); err != nil {
			errs = append(errs, &VarError{Name: name, Value: raw, Err: err})
		}
	}
	return errors.Join(errs...)
}

var (
	durationType = reflect.TypeFor[time.Duration]()
	listType     = reflect.TypeFor[[]string]()
)

func set(field reflect.Value, raw string) error {
	switch t := field.Type(); {
	case t == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))

	case t == listType:
		var items []string
		for item := range strings.SplitSeq(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))

	case t.Kind() == reflect.String:
		field.SetString(raw)

	case t.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case t.Kind() == reflect.Int, t.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return nil
}
