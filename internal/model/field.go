package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Field identifies a filterable dimension of an Event.
type Field string

const (
	FieldYear         Field = "year"
	FieldRegion       Field = "region"
	FieldCountry      Field = "country"
	FieldViolenceType Field = "violence"
)

// Fields lists the filter dimensions in control order.
var Fields = []Field{FieldYear, FieldRegion, FieldCountry, FieldViolenceType}

// ParseField converts a user-facing name into a Field.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "year", "years":
		return FieldYear, nil
	case "region", "regions":
		return FieldRegion, nil
	case "country", "countries":
		return FieldCountry, nil
	case "violence", "violence_type", "type_of_violence":
		return FieldViolenceType, nil
	default:
		return "", eris.Errorf("unknown field: %q (valid: year, region, country, violence)", s)
	}
}

// Value returns the event's value for the given dimension as a string.
func (e *Event) Value(f Field) string {
	switch f {
	case FieldYear:
		return strconv.Itoa(e.Year)
	case FieldRegion:
		return e.Region
	case FieldCountry:
		return e.Country
	case FieldViolenceType:
		return string(e.ViolenceType)
	default:
		return ""
	}
}
