// Package filter turns a multi-valued filter selection into a single event
// predicate.
package filter

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/conflict-dash/internal/model"
)

// Selection holds the allowed values per dimension. A nil or empty slice
// leaves that dimension unconstrained.
type Selection struct {
	Years         []int                `json:"years,omitempty"`
	Regions       []string             `json:"regions,omitempty"`
	Countries     []string             `json:"countries,omitempty"`
	ViolenceTypes []model.ViolenceType `json:"violence_types,omitempty"`
}

// Predicate reports whether an event matches.
type Predicate func(*model.Event) bool

// And returns a predicate matching events accepted by both p and q. A nil
// operand is treated as match-all.
func (p Predicate) And(q Predicate) Predicate {
	return All(p, q)
}

// All folds the non-nil predicates into one conjunction. With no
// constraints left it matches every event.
func All(preds ...Predicate) Predicate {
	active := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	return func(e *model.Event) bool {
		for _, p := range active {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// memberOf builds "value(e) ∈ allowed". An empty allowed set yields nil so the
// dimension drops out of the fold.
func memberOf[T comparable](allowed []T, value func(*model.Event) T) Predicate {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[T]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}
	return func(e *model.Event) bool {
		_, ok := set[value(e)]
		return ok
	}
}

// dimension binds a model.Field to its slot in Selection.
type dimension struct {
	field      model.Field
	constraint func(Selection) Predicate
	values     func(Selection) []string
	copyTo     func(dst *Selection, src Selection)
}

var dimensions = []dimension{
	{
		field:      model.FieldYear,
		constraint: func(s Selection) Predicate { return memberOf(s.Years, func(e *model.Event) int { return e.Year }) },
		values: func(s Selection) []string {
			out := make([]string, len(s.Years))
			for i, y := range s.Years {
				out[i] = strconv.Itoa(y)
			}
			return out
		},
		copyTo: func(dst *Selection, src Selection) { dst.Years = slices.Clone(src.Years) },
	},
	{
		field:      model.FieldRegion,
		constraint: func(s Selection) Predicate { return memberOf(s.Regions, func(e *model.Event) string { return e.Region }) },
		values:     func(s Selection) []string { return slices.Clone(s.Regions) },
		copyTo:     func(dst *Selection, src Selection) { dst.Regions = slices.Clone(src.Regions) },
	},
	{
		field:      model.FieldCountry,
		constraint: func(s Selection) Predicate { return memberOf(s.Countries, func(e *model.Event) string { return e.Country }) },
		values:     func(s Selection) []string { return slices.Clone(s.Countries) },
		copyTo:     func(dst *Selection, src Selection) { dst.Countries = slices.Clone(src.Countries) },
	},
	{
		field: model.FieldViolenceType,
		constraint: func(s Selection) Predicate {
			return memberOf(s.ViolenceTypes, func(e *model.Event) model.ViolenceType { return e.ViolenceType })
		},
		values: func(s Selection) []string {
			out := make([]string, len(s.ViolenceTypes))
			for i, v := range s.ViolenceTypes {
				out[i] = string(v)
			}
			return out
		},
		copyTo: func(dst *Selection, src Selection) { dst.ViolenceTypes = slices.Clone(src.ViolenceTypes) },
	},
}

// Build returns the conjunction of "field value ∈ selected set" over every
// constrained dimension. Build(Selection{}) matches every event.
func Build(sel Selection) Predicate {
	preds := make([]Predicate, 0, len(dimensions))
	for _, d := range dimensions {
		preds = append(preds, d.constraint(sel))
	}
	return All(preds...)
}

// Values returns the selected values of one dimension as strings.
func (s Selection) Values(f model.Field) []string {
	for _, d := range dimensions {
		if d.field == f {
			return d.values(s)
		}
	}
	return nil
}

// Only projects the selection onto the given dimensions; all others become
// unconstrained.
func (s Selection) Only(fields ...model.Field) Selection {
	var out Selection
	for _, d := range dimensions {
		if slices.Contains(fields, d.field) {
			d.copyTo(&out, s)
		}
	}
	return out
}

// IsEmpty reports whether no dimension is constrained.
func (s Selection) IsEmpty() bool {
	for _, d := range dimensions {
		if len(d.values(s)) > 0 {
			return false
		}
	}
	return true
}

// Key is a canonical encoding of the selection: dimensions and their values
// sorted and de-duplicated. Equal selections produce equal keys regardless of
// input order.
func (s Selection) Key() string {
	return s.Query().Encode()
}

// Query encodes the selection as URL query parameters, one value per entry.
func (s Selection) Query() url.Values {
	q := url.Values{}
	for _, d := range dimensions {
		vals := d.values(s)
		if len(vals) == 0 {
			continue
		}
		if d.field == model.FieldYear {
			slices.SortFunc(vals, func(a, b string) int {
				x, _ := strconv.Atoi(a)
				y, _ := strconv.Atoi(b)
				return x - y
			})
		} else {
			slices.Sort(vals)
		}
		q[string(d.field)] = slices.Compact(vals)
	}
	return q
}

// FromQuery parses year, region, country and violence parameters. Each may
// repeat and may hold comma-separated values. Blank entries are ignored.
func FromQuery(q url.Values) (Selection, error) {
	var sel Selection
	for _, raw := range splitParam(q, "year") {
		y, err := strconv.Atoi(raw)
		if err != nil {
			return Selection{}, eris.Errorf("invalid year %q", raw)
		}
		sel.Years = append(sel.Years, y)
	}
	sel.Regions = splitParam(q, "region")
	sel.Countries = splitParam(q, "country")
	for _, raw := range splitParam(q, "violence") {
		v, err := ParseViolenceType(raw)
		if err != nil {
			return Selection{}, err
		}
		sel.ViolenceTypes = append(sel.ViolenceTypes, v)
	}
	return sel, nil
}

func splitParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseViolenceType accepts a full label, a short name (state-based,
// non-state, one-sided) or a UCDP code (1, 2, 3).
func ParseViolenceType(s string) (model.ViolenceType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, v := range model.ViolenceTypes {
		if key == strings.ToLower(string(v)) || key == strconv.Itoa(i+1) {
			return v, nil
		}
	}
	switch strings.NewReplacer("_", "-", " ", "-").Replace(key) {
	case "state-based", "state":
		return model.ViolenceStateBased, nil
	case "non-state", "nonstate":
		return model.ViolenceNonState, nil
	case "one-sided", "onesided":
		return model.ViolenceOneSided, nil
	}
	return "", eris.Errorf("unknown violence type %q (valid: state-based, non-state, one-sided)", s)
}
