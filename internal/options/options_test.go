package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/conflict-dash/internal/dataset"
	"github.com/sells-group/conflict-dash/internal/filter"
	"github.com/sells-group/conflict-dash/internal/model"
)

func newResolver() *Resolver {
	mk := func(year int, region, country string, v model.ViolenceType) model.Event {
		return model.Event{Year: year, Region: region, Country: country, ViolenceType: v}
	}
	return NewResolver(dataset.FromEvents("fixture", []model.Event{
		mk(2020, "Africa", "Mali", model.ViolenceStateBased),
		mk(2020, "Africa", "Nigeria", model.ViolenceOneSided),
		mk(2021, "Europe", "Ukraine", model.ViolenceStateBased),
		mk(2021, "Africa", "Chad", model.ViolenceNonState),
		mk(2019, "Asia", "Myanmar", model.ViolenceStateBased),
		mk(989, "Asia", "Afghanistan", model.ViolenceOneSided),
	}))
}

func TestUpstream(t *testing.T) {
	assert.Empty(t, Upstream(model.FieldYear))
	assert.Equal(t, []model.Field{model.FieldYear}, Upstream(model.FieldRegion))
	assert.Equal(t, []model.Field{model.FieldYear, model.FieldRegion}, Upstream(model.FieldCountry))
	assert.Empty(t, Upstream(model.FieldViolenceType))
}

func TestDownstream(t *testing.T) {
	assert.Equal(t, []model.Field{model.FieldRegion, model.FieldCountry}, Downstream(model.FieldYear))
	assert.Equal(t, []model.Field{model.FieldCountry}, Downstream(model.FieldRegion))
	assert.Empty(t, Downstream(model.FieldCountry))
	assert.Empty(t, Downstream(model.FieldViolenceType))
}

func TestOptions_NoUpstreamIsFullList(t *testing.T) {
	r := newResolver()
	assert.Equal(t, []string{"Africa", "Asia", "Europe"}, r.Options(model.FieldRegion, filter.Selection{}))
	assert.Equal(t, []string{"989", "2019", "2020", "2021"}, r.Options(model.FieldYear, filter.Selection{}))

	// Selections on unrelated controls are ignored.
	sel := filter.Selection{
		Countries:     []string{"Mali"},
		ViolenceTypes: []model.ViolenceType{model.ViolenceOneSided},
	}
	assert.Equal(t, []string{"Africa", "Asia", "Europe"}, r.Options(model.FieldRegion, sel))
}

func TestOptions_RegionByYear(t *testing.T) {
	r := newResolver()
	assert.Equal(t, []string{"Africa"}, r.Options(model.FieldRegion, filter.Selection{Years: []int{2020}}))
	assert.Equal(t, []string{"Africa", "Europe"}, r.Options(model.FieldRegion, filter.Selection{Years: []int{2021}}))
	assert.Equal(t, []string{"Africa", "Asia"}, r.Options(model.FieldRegion, filter.Selection{Years: []int{2020, 2019}}))
	assert.Empty(t, r.Options(model.FieldRegion, filter.Selection{Years: []int{1900}}))
}

func TestOptions_CountryByYearAndRegion(t *testing.T) {
	r := newResolver()

	assert.Equal(t, []string{"Chad", "Mali", "Nigeria"},
		r.Options(model.FieldCountry, filter.Selection{Regions: []string{"Africa"}}))
	assert.Equal(t, []string{"Chad", "Ukraine"},
		r.Options(model.FieldCountry, filter.Selection{Years: []int{2021}}))

	// Both constraints apply together.
	assert.Equal(t, []string{"Chad"},
		r.Options(model.FieldCountry, filter.Selection{Years: []int{2021}, Regions: []string{"Africa"}}))

	// The country's own selection and violence type do not restrict it.
	assert.Equal(t, []string{"Mali", "Nigeria"}, r.Options(model.FieldCountry, filter.Selection{
		Years:         []int{2020},
		Countries:     []string{"Mali"},
		ViolenceTypes: []model.ViolenceType{model.ViolenceNonState},
	}))
}

func TestOptions_ViolenceIndependent(t *testing.T) {
	r := newResolver()
	got := r.Options(model.FieldViolenceType, filter.Selection{Years: []int{2020}, Regions: []string{"Asia"}})
	assert.Equal(t, []string{"Non-state conflict", "One-sided violence", "State-based conflict"}, got)
}

func TestOnChange(t *testing.T) {
	r := newResolver()
	sel := filter.Selection{Years: []int{2021}, Regions: []string{"Europe"}}

	got := r.OnChange(model.FieldYear, sel)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"Africa", "Europe"}, got[model.FieldRegion])
	assert.Equal(t, []string{"Ukraine"}, got[model.FieldCountry])

	got = r.OnChange(model.FieldRegion, sel)
	assert.Equal(t, map[model.Field][]string{model.FieldCountry: {"Ukraine"}}, got)

	assert.Empty(t, r.OnChange(model.FieldCountry, sel))
	assert.Empty(t, r.OnChange(model.FieldViolenceType, sel))
}

func TestAll(t *testing.T) {
	r := newResolver()
	all := r.All(filter.Selection{Years: []int{2019}})
	require.Len(t, all, 4)
	assert.Equal(t, []string{"989", "2019", "2020", "2021"}, all[model.FieldYear])
	assert.Equal(t, []string{"Asia"}, all[model.FieldRegion])
	assert.Equal(t, []string{"Myanmar"}, all[model.FieldCountry])
	assert.Len(t, all[model.FieldViolenceType], 3)
}

func TestDefinitions(t *testing.T) {
	require.Len(t, Definitions, len(model.ViolenceTypes))
	for i, v := range model.ViolenceTypes {
		assert.Equal(t, v, Definitions[i].ViolenceType)
		d, ok := Define(v)
		require.True(t, ok)
		assert.Contains(t, d.Text, "25")
	}
	_, ok := Define("Riots")
	assert.False(t, ok)
}
