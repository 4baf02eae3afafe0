// Package schema gates an input table on its header before any row is processed.
package schema

import (
	"github.com/bmh-lims/lims/pkg/core"
)

// DefaultRequired is the column set a submission form template must carry.
var DefaultRequired = []string{
	"sample_name",
	"sample_type",
	"tube_plate_label",
	"sample_volume_in_ul",
	"requested_services",
	"genus",
	"species",
}

// KnownSampleFields returns the set of uploadable Sample columns.
func KnownSampleFields() map[string]bool {
	known := make(map[string]bool, len(core.SampleFields))
	for _, f := range core.SampleFields {
		known[f.Name] = true
	}
	return known
}

// Validator checks a table header against a required column list and the known field set.
type Validator struct {
	required      []string
	known         map[string]bool
	rejectUnknown bool
}

// New creates a Validator. With rejectUnknown false, unknown columns are reported
// by Check but do not fail it.
func New(required []string, rejectUnknown bool) *Validator {
	return &Validator{
		required:      append([]string(nil), required...),
		known:         KnownSampleFields(),
		rejectUnknown: rejectUnknown,
	}
}

// Required returns the configured required columns.
func (v *Validator) Required() []string {
	return append([]string(nil), v.required...)
}

// Check validates t and returns the unknown columns found, in header order.
// Errors are *core.EmptyInputError, *core.MissingColumnsError or *core.UnexpectedColumnsError.
func (v *Validator) Check(t *core.Table) ([]string, error) {
	if t.Len() == 0 {
		return nil, &core.EmptyInputError{}
	}

	present := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		present[c] = true
	}

	var missing []string
	for _, c := range v.required {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &core.MissingColumnsError{Columns: missing}
	}

	var unknown []string
	for _, c := range t.Columns {
		if !v.known[c] {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 && v.rejectUnknown {
		return unknown, &core.UnexpectedColumnsError{Columns: unknown}
	}
	return unknown, nil
}
