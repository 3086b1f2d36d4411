package dataset

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a load failure.
type ErrorKind string

const (
	KindUnreachable ErrorKind = "unreachable"
	KindSchema      ErrorKind = "schema"
	KindParse       ErrorKind = "parse"
	KindEmpty       ErrorKind = "empty"
)

// LoadError reports why a dataset could not be loaded. Row is the 1-based
// data row (the header is not counted) and Line the position in the source;
// both are zero when the failure is not tied to a row.
type LoadError struct {
	Kind   ErrorKind
	Source string
	Row    int
	Line   int
	Column string
	Err    error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "load %s: %s error", e.Source, e.Kind)
	if e.Row > 0 {
		fmt.Fprintf(&b, " at row %d", e.Row)
		if e.Line > 0 && e.Line != e.Row {
			fmt.Fprintf(&b, " (line %d)", e.Line)
		}
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ", column %s", e.Column)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
