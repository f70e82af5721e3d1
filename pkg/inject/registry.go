// Package inject populates strongly typed settings structs from loosely
// typed string key/value pairs.
package inject

import (
	"fmt"
	"reflect"
)

// Converter parses a raw string into a value of one specific type.
// The returned value must have exactly the type the converter is
// registered for.
type Converter interface {
	Convert(raw string) (interface{}, error)
}

// ConverterFunc adapts a plain function to Converter
type ConverterFunc func(raw string) (interface{}, error)

// Convert implements Converter
func (f ConverterFunc) Convert(raw string) (interface{}, error) {
	return f(raw)
}

// Registry maps a type to its converter. It is populated once and then only
// read, so concurrent Lookup calls need no locking.
type Registry struct {
	converters map[reflect.Type]Converter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		converters: make(map[reflect.Type]Converter),
	}
}

// Register installs the converter for t, replacing any previous one
func (r *Registry) Register(t reflect.Type, c Converter) {
	r.converters[t] = c
}

// Lookup returns the converter registered for t
func (r *Registry) Lookup(t reflect.Type) (Converter, bool) {
	c, ok := r.converters[t]
	return c, ok
}

// Len returns the number of registered types
func (r *Registry) Len() int {
	return len(r.converters)
}

// RegisterFunc registers a typed parse function for T
func RegisterFunc[T any](r *Registry, parse func(raw string) (T, error)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	r.Register(t, ConverterFunc(func(raw string) (interface{}, error) {
		v, err := parse(raw)
		if err != nil {
			return nil, &ConversionError{Type: Descriptor(t), Value: raw, Err: err}
		}
		return v, nil
	}))
}

// RegisterEnum registers a converter for a string-backed enumeration.
// Only exact, case-sensitive matches of the given values are accepted.
func RegisterEnum[T ~string](r *Registry, values ...T) {
	allowed := make(map[string]T, len(values))
	for _, v := range values {
		allowed[string(v)] = v
	}
	RegisterFunc(r, func(raw string) (T, error) {
		v, ok := allowed[raw]
		if !ok {
			var zero T
			return zero, fmt.Errorf("unknown name %q, expected one of %v", raw, values)
		}
		return v, nil
	})
}

// RegisterList registers a converter for []T that splits the raw string on
// commas and spaces and parses every element with parse.
func RegisterList[T any](r *Registry, parse func(raw string) (T, error)) {
	RegisterFunc(r, func(raw string) ([]T, error) {
		parts := SplitList(raw)
		out := make([]T, 0, len(parts))
		for i, p := range parts {
			v, err := parse(p)
			if err != nil {
				return nil, fmt.Errorf("element %d (%q): %w", i, p, err)
			}
			out = append(out, v)
		}
		return out, nil
	})
}

// Descriptor returns the descriptor used in reports for t, e.g. "int32",
// "[]float32" or "enum:texturepacker.TextureFilter".
func Descriptor(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.PkgPath() != "" && t.Kind() == reflect.String {
		return "enum:" + t.String()
	}
	return t.String()
}
