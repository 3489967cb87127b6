// File: internal/form/result.go
package form

import "fmt"

// Result accumulates per-field outcomes across the fill, repair and audit
// passes. Filling is monotonic: once a field is recorded filled it can never
// be re-flagged empty by a later pass.
type Result struct {
	fieldsFilled []string
	fieldsEmpty  []string
	errors       []string

	filled map[string]bool
	empty  map[string]bool
}

// NewResult creates an empty accumulator.
func NewResult() *Result {
	return &Result{
		filled: map[string]bool{},
		empty:  map[string]bool{},
	}
}

// MarkFilled records a field as filled. Repeated marks are deduplicated so
// idempotent sweeps do not inflate the report.
func (r *Result) MarkFilled(field string) {
	if r.filled[field] {
		return
	}
	r.filled[field] = true
	r.fieldsFilled = append(r.fieldsFilled, field)
}

// MarkEmpty records a field as unresolved. A field already marked filled is
// never re-flagged, and duplicates are dropped.
func (r *Result) MarkEmpty(field string) {
	if r.filled[field] || r.empty[field] {
		return
	}
	r.empty[field] = true
	r.fieldsEmpty = append(r.fieldsEmpty, field)
}

// IsFilled reports whether a field was recorded filled in any pass.
func (r *Result) IsFilled(field string) bool { return r.filled[field] }

// AddError records a non-fatal error string.
func (r *Result) AddError(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

// FieldsFilled returns the ordered list of filled field identifiers.
func (r *Result) FieldsFilled() []string { return r.fieldsFilled }

// FieldsEmpty returns the question texts still unresolved after verification.
func (r *Result) FieldsEmpty() []string { return r.fieldsEmpty }

// Errors returns the accumulated error strings.
func (r *Result) Errors() []string { return r.errors }

// Success reports whether the run finished without errors.
func (r *Result) Success() bool { return len(r.errors) == 0 }
