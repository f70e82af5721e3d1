package inject

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilTarget is returned when Inject is called without a target
	ErrNilTarget = errors.New("inject: target is nil")
	// ErrNotStructPointer is returned when the target is not a pointer to a struct
	ErrNotStructPointer = errors.New("inject: target must be a non-nil pointer to a struct")
	// ErrNilRegistry is returned when Inject is called without a registry
	ErrNilRegistry = errors.New("inject: registry is nil")
)

// ConversionError reports a raw string that could not be parsed into the
// field's type
type ConversionError struct {
	Type  string
	Value string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %q to %s: %v", e.Value, e.Type, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// WarningKind classifies a per-field injection problem
type WarningKind string

const (
	UnknownField      WarningKind = "unknown-field"
	NoConverter       WarningKind = "no-converter"
	ConversionFailure WarningKind = "conversion-failure"
)

// Warning is a non-fatal problem with a single override
type Warning struct {
	Kind  WarningKind
	Field string
	Type  string
	Value string
	Err   error
}

// String renders the warning for a user
func (w Warning) String() string {
	switch w.Kind {
	case UnknownField:
		return fmt.Sprintf("no field matching '%s' in %s", w.Field, w.Type)
	case NoConverter:
		return fmt.Sprintf("field %s with type %s has no converter", w.Field, w.Type)
	case ConversionFailure:
		return fmt.Sprintf("field %s: %v", w.Field, w.Err)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Field)
}

// Report collects the outcome of one Inject call
type Report struct {
	Applied  []string
	Warnings []Warning
}

// HasWarnings reports whether any override was not applied
func (r *Report) HasWarnings() bool {
	return r != nil && len(r.Warnings) > 0
}

// Count returns the number of warnings of the given kind
func (r *Report) Count(kind WarningKind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, w := range r.Warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

// Err folds all warnings into a single error, or nil when there are none
func (r *Report) Err() error {
	if !r.HasWarnings() {
		return nil
	}
	msgs := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		msgs[i] = w.String()
	}
	return fmt.Errorf("%d configuration problem(s): %s", len(msgs), strings.Join(msgs, "; "))
}

func (r *Report) warn(w Warning) {
	r.Warnings = append(r.Warnings, w)
}
