package filter

import (
	"fmt"
	"strings"

	"github.com/sells-group/conflict-dash/internal/model"
)

// Domain exposes the known values of each dimension.
type Domain interface {
	DistinctValues(f model.Field) []string
}

// InvalidValue is a selected value that never occurs in the dataset.
type InvalidValue struct {
	Field model.Field `json:"field"`
	Value string      `json:"value"`
}

func (v InvalidValue) String() string {
	return fmt.Sprintf("%s=%s", v.Field, v.Value)
}

// InvalidSelectionError lists unknown selected values. Queries do not fail
// on it; unknown values simply match nothing.
type InvalidSelectionError struct {
	Invalid []InvalidValue
}

func (e *InvalidSelectionError) Error() string {
	parts := make([]string, len(e.Invalid))
	for i, v := range e.Invalid {
		parts[i] = v.String()
	}
	return "invalid selection: unknown values " + strings.Join(parts, ", ")
}

// Warnings renders each invalid value as a user-facing message.
func (e *InvalidSelectionError) Warnings() []string {
	out := make([]string, len(e.Invalid))
	for i, v := range e.Invalid {
		out[i] = fmt.Sprintf("unknown %s %q ignored", v.Field, v.Value)
	}
	return out
}

// Check returns the selected values absent from known, in dimension order.
func Check(sel Selection, known Domain) []InvalidValue {
	var invalid []InvalidValue
	for _, d := range dimensions {
		vals := d.values(sel)
		if len(vals) == 0 {
			continue
		}
		set := make(map[string]struct{})
		for _, v := range known.DistinctValues(d.field) {
			set[v] = struct{}{}
		}
		for _, v := range vals {
			if _, ok := set[v]; !ok {
				invalid = append(invalid, InvalidValue{Field: d.field, Value: v})
			}
		}
	}
	return invalid
}

// Validate wraps the result of Check in an *InvalidSelectionError, or
// returns nil when every value is known.
func Validate(sel Selection, known Domain) error {
	if invalid := Check(sel, known); len(invalid) > 0 {
		return &InvalidSelectionError{Invalid: invalid}
	}
	return nil
}
