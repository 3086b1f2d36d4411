// Package options computes the legal values of the filter controls. Region
// options depend on the selected years and country options on the selected
// years and regions; year and violence type are independent.
package options

import (
	"slices"
	"strconv"

	"github.com/sells-group/conflict-dash/internal/filter"
	"github.com/sells-group/conflict-dash/internal/model"
)

// Table is the read side of the dataset the resolver needs.
type Table interface {
	DistinctValues(f model.Field) []string
	Select(pred func(*model.Event) bool) []model.Event
}

// upstream lists, per control, the controls its options depend on.
var upstream = map[model.Field][]model.Field{
	model.FieldRegion:  {model.FieldYear},
	model.FieldCountry: {model.FieldYear, model.FieldRegion},
}

// Upstream returns the controls whose selection restricts f's options.
func Upstream(f model.Field) []model.Field {
	return slices.Clone(upstream[f])
}

// Downstream returns every control whose options depend on f, directly or
// transitively, in control order.
func Downstream(f model.Field) []model.Field {
	var out []model.Field
	for _, candidate := range model.Fields {
		if dependsOn(candidate, f) {
			out = append(out, candidate)
		}
	}
	return out
}

func dependsOn(f, on model.Field) bool {
	for _, up := range upstream[f] {
		if up == on || dependsOn(up, on) {
			return true
		}
	}
	return false
}

// Resolver answers option-list queries. It never reconciles stale
// downstream selections; callers decide what to do with a selected value
// that drops out of its list.
type Resolver struct {
	table Table
}

// NewResolver creates a resolver over table.
func NewResolver(table Table) *Resolver {
	return &Resolver{table: table}
}

// Options returns the sorted distinct values of f among events matching
// only the upstream constraints in sel. With no upstream constraint set it
// is the full distinct list.
func (r *Resolver) Options(f model.Field, sel filter.Selection) []string {
	restrict := sel.Only(Upstream(f)...)
	if restrict.IsEmpty() {
		return r.table.DistinctValues(f)
	}

	set := make(map[string]struct{})
	for _, e := range r.table.Select(filter.Build(restrict)) {
		set[e.Value(f)] = struct{}{}
	}
	vals := make([]string, 0, len(set))
	for v := range set {
		vals = append(vals, v)
	}
	sortValues(f, vals)
	return vals
}

// OnChange recomputes the option list of every control downstream of the
// changed one.
func (r *Resolver) OnChange(changed model.Field, sel filter.Selection) map[model.Field][]string {
	out := make(map[model.Field][]string)
	for _, f := range Downstream(changed) {
		out[f] = r.Options(f, sel)
	}
	return out
}

// All returns the option list of every control for sel.
func (r *Resolver) All(sel filter.Selection) map[model.Field][]string {
	out := make(map[model.Field][]string, len(model.Fields))
	for _, f := range model.Fields {
		out[f] = r.Options(f, sel)
	}
	return out
}

func sortValues(f model.Field, vals []string) {
	if f != model.FieldYear {
		slices.Sort(vals)
		return
	}
	slices.SortFunc(vals, func(a, b string) int {
		x, _ := strconv.Atoi(a)
		y, _ := strconv.Atoi(b)
		return x - y
	})
}
