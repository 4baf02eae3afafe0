package validate

import (
	"fmt"
	"math"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/bmh-lims/lims/internal/normalize"
	"github.com/bmh-lims/lims/pkg/core"
)

// Field failure messages.
const (
	MsgRequired      = "This field is required."
	MsgDateFormat    = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	MsgNumber        = "A valid number is required."
	MsgInteger       = "A valid integer is required."
	MsgNonNegative   = "Ensure this value is greater than or equal to 0."
	MsgBoolean       = "Must be a valid boolean."
	MsgAlphabetic    = "Field should only contain alphabetic characters"
	MsgStrictName    = "Field should only contain alphanumeric characters, underscores, and dashes."
	MsgRelaxedName   = "Field should only contain alphanumeric characters, spaces, underscores, and dashes."
	msgMaxLength     = "Ensure this field has no more than %d characters."
	msgInvalidWell   = "Well should be a capital letter followed by a two-digit number (e.g., A01, B02, etc.) You provided: %s"
	msgInvalidChoice = "\"%v\" is not a valid choice."
)

var (
	// StrictNamePattern admits letters, digits, underscores and dashes.
	StrictNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// RelaxedNamePattern additionally admits interior spaces.
	RelaxedNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\- ]+$`)

	alphabetic  = regexp.MustCompile(`^[a-zA-Z]+$`)
	wellPattern = regexp.MustCompile(`^[A-Z]\d{2}$`)
	isoDate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Rules configures the per-row field constraints.
type Rules struct {
	// Required lists columns that must be non-missing on every row.
	Required []string
	// NamePattern constrains sample_name.
	NamePattern *regexp.Regexp
	// NameMessage is reported when NamePattern does not match.
	NameMessage string
	// ResolveSubmitterProject treats submitter_project as a reference to a stored project.
	ResolveSubmitterProject bool
}

// FormRules are the constraints for uploads through the submission form.
func FormRules(required []string) Rules {
	return Rules{Required: required, NamePattern: StrictNamePattern, NameMessage: MsgStrictName}
}

// BulkRules are the constraints for command-line bulk loads.
func BulkRules(required []string) Rules {
	return Rules{
		Required:                required,
		NamePattern:             RelaxedNamePattern,
		NameMessage:             MsgRelaxedName,
		ResolveSubmitterProject: true,
	}
}

// CheckFields applies required-presence and every field-level constraint to rec.
// All failures are returned together, in field table order.
func CheckFields(rec normalize.Record, rules Rules) core.FieldErrors {
	var errs core.FieldErrors
	add := func(field, reason string) {
		errs = append(errs, &core.FieldValidationError{Field: field, Reason: reason})
	}

	required := make(map[string]bool, len(rules.Required)+2)
	for _, c := range rules.Required {
		required[c] = true
	}
	required[core.ColSampleName] = true

	for _, f := range core.SampleFields {
		v := rec[f.Name]
		if v == nil {
			if required[f.Name] {
				add(f.Name, MsgRequired)
			}
			continue
		}
		if reason := checkValue(f, v, rules); reason != "" {
			add(f.Name, reason)
		}
	}
	return errs
}

func checkValue(f core.Field, v any, rules Rules) string {
	switch f.Kind {
	case core.KindDate:
		s, ok := v.(string)
		if !ok || !isoDate.MatchString(s) {
			return MsgDateFormat
		}
		if _, err := time.Parse(normalize.DateLayout, s); err != nil {
			return MsgDateFormat
		}
	case core.KindFloat:
		n, ok := v.(float64)
		if !ok || math.IsInf(n, 0) || math.IsNaN(n) {
			return MsgNumber
		}
		if n < 0 {
			return MsgNonNegative
		}
	case core.KindInt:
		n, ok := v.(int64)
		if !ok {
			return MsgInteger
		}
		if n < 0 {
			return MsgNonNegative
		}
	case core.KindBool:
		if _, ok := v.(bool); !ok {
			return MsgBoolean
		}
	case core.KindChoice:
		s, ok := v.(string)
		if !ok || !core.SampleType(s).Valid() {
			return fmt.Sprintf(msgInvalidChoice, v)
		}
	default:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprintf("Not a valid string: %v", v)
		}
		return checkText(f, s, rules)
	}
	return ""
}

func checkText(f core.Field, s string, rules Rules) string {
	if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
		return fmt.Sprintf(msgMaxLength, f.MaxLength)
	}
	switch f.Name {
	case core.ColSampleName:
		if rules.NamePattern != nil && !rules.NamePattern.MatchString(s) {
			return rules.NameMessage
		}
	case "genus", "species":
		if !alphabetic.MatchString(s) {
			return MsgAlphabetic
		}
	case "well":
		if !wellPattern.MatchString(s) {
			return fmt.Sprintf(msgInvalidWell, s)
		}
	}
	return ""
}
