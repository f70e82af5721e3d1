package inject

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/viant/xunsafe"
)

// Inject applies overrides to the struct target points to. Every override
// that names a field, has a converter and parses is written; all other
// overrides are recorded as warnings and leave their field untouched.
//
// An error is returned only for misuse: nil target, non struct pointer or
// nil registry.
func Inject(target interface{}, overrides map[string]string, registry *Registry) (*Report, error) {
	if target == nil {
		return nil, ErrNilTarget
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, ErrNotStructPointer
	}

	table := Fields(rv.Type())
	holder := xunsafe.AsPointer(target)
	report := &Report{}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range keys {
		raw := overrides[name]
		field, ok := table.Lookup(name)
		if !ok {
			report.warn(Warning{Kind: UnknownField, Field: name, Type: table.Type.String(), Value: raw})
			continue
		}
		converter, ok := registry.Lookup(field.Type)
		if !ok {
			report.warn(Warning{Kind: NoConverter, Field: name, Type: field.Descriptor(), Value: raw})
			continue
		}
		value, err := converter.Convert(raw)
		if err != nil {
			report.warn(Warning{Kind: ConversionFailure, Field: name, Type: field.Descriptor(), Value: raw, Err: asConversionError(err, field, raw)})
			continue
		}
		if value == nil || reflect.TypeOf(value) != field.Type {
			report.warn(Warning{
				Kind:  ConversionFailure,
				Field: name,
				Type:  field.Descriptor(),
				Value: raw,
				Err:   &ConversionError{Type: field.Descriptor(), Value: raw, Err: errMismatchedConverter(value)},
			})
			continue
		}
		field.set(holder, value)
		report.Applied = append(report.Applied, name)
	}
	return report, nil
}

func asConversionError(err error, field *Field, raw string) error {
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return err
	}
	return &ConversionError{Type: field.Descriptor(), Value: raw, Err: err}
}

func errMismatchedConverter(value interface{}) error {
	return fmt.Errorf("converter produced %T", value)
}
