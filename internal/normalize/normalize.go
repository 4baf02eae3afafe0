// Package normalize converts raw spreadsheet cells into canonical values.
//
// Every function returns either a canonical value, nil for Missing, or the
// input unchanged when it cannot be interpreted. Unchanged values are left for
// field validation to reject, so nothing is silently dropped here.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bmh-lims/lims/pkg/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DateLayout is the only accepted calendar date form.
const DateLayout = "2006-01-02"

// Record is a normalized row. A nil value is Missing.
type Record map[string]any

// lineKey holds the source line of a record; it never collides with a column name.
const lineKey = "__line"

// IsMissing reports whether v is empty, absent, the literal "null" or NaN.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(x)
		return s == "" || s == "null"
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// String trims whitespace and applies Unicode NFC. Non-string scalars are formatted.
func String(v any) any {
	if IsMissing(v) {
		return nil
	}
	switch x := v.(type) {
	case string:
		return norm.NFC.String(strings.TrimSpace(x))
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return String(float64(x))
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(DateLayout)
	}
	return v
}

// Date formats date-like values as YYYY-MM-DD. Strings pass through trimmed.
func Date(v any) any {
	if IsMissing(v) {
		return nil
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case time.Time:
		return x.Format(DateLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(DateLayout)
	}
	return v
}

// Float coerces numeric-looking values to float64.
func Float(v any) any {
	if IsMissing(v) {
		return nil
	}
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		s := strings.TrimSpace(x)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return s
		}
		if math.IsNaN(f) {
			return nil
		}
		if math.IsInf(f, 0) {
			return s
		}
		return f
	}
	return v
}

// Int coerces integral values to int64. Fractional numbers pass through.
func Int(v any) any {
	switch x := Float(v).(type) {
	case nil:
		return nil
	case float64:
		if x != math.Trunc(x) || x >= math.MaxInt64 || x < math.MinInt64 {
			return x
		}
		return int64(x)
	default:
		return x
	}
}

// Bool coerces yes/no style values.
func Bool(v any) any {
	if IsMissing(v) {
		return nil
	}
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		switch x {
		case 1:
			return true
		case 0:
			return false
		}
	case int64:
		switch x {
		case 1:
			return true
		case 0:
			return false
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "yes", "y", "1":
			return true
		case "false", "f", "no", "n", "0":
			return false
		}
		return strings.TrimSpace(x)
	}
	return v
}

var fold = cases.Fold()

var labelToCode = func() map[string]core.SampleType {
	m := make(map[string]core.SampleType, len(core.SampleTypeChoices))
	for _, c := range core.SampleTypeChoices {
		m[fold.String(c.Label)] = c.Code
	}
	return m
}()

// SampleType substitutes the internal code for a human label, matched case-insensitively.
// Codes and unrecognized values pass through trimmed.
func SampleType(v any) any {
	s, ok := String(v).(string)
	if !ok {
		return String(v)
	}
	if code, ok := labelToCode[fold.String(s)]; ok {
		return string(code)
	}
	return s
}

// Value normalizes v for a field of the given kind.
func Value(kind core.FieldKind, v any) any {
	switch kind {
	case core.KindDate:
		return Date(v)
	case core.KindFloat:
		return Float(v)
	case core.KindInt:
		return Int(v)
	case core.KindBool:
		return Bool(v)
	case core.KindChoice:
		return SampleType(v)
	default:
		return String(v)
	}
}

// Row normalizes every column of row. Columns outside the field table are treated as text.
func Row(row core.RawRow) Record {
	rec := make(Record, len(row.Values)+1)
	for col, v := range row.Values {
		kind := core.KindText
		if f, ok := core.LookupField(col); ok {
			kind = f.Kind
		}
		rec[col] = Value(kind, v)
	}
	rec[lineKey] = row.Line
	return rec
}

// Line returns the source line stored by Row, or zero.
func (r Record) Line() int {
	if n, ok := r[lineKey].(int); ok {
		return n
	}
	return 0
}

// Text returns the value of col when it is a non-missing string.
func (r Record) Text(col string) string {
	if s, ok := r[col].(string); ok {
		return s
	}
	return ""
}

// Fields returns the record without bookkeeping keys.
func (r Record) Fields() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		if k == lineKey {
			continue
		}
		out[k] = v
	}
	return out
}
