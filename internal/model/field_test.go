package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Field
	}{
		{"year", FieldYear},
		{"Years", FieldYear},
		{" region ", FieldRegion},
		{"countries", FieldCountry},
		{"violence", FieldViolenceType},
		{"type_of_violence", FieldViolenceType},
	}
	for _, tt := range tests {
		got, err := ParseField(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseField("conflict_name")
	assert.Error(t, err)
}

func TestEvent_Value(t *testing.T) {
	t.Parallel()

	e := &Event{Year: 2020, Region: "Africa", Country: "Mali", ViolenceType: ViolenceNonState}
	assert.Equal(t, "2020", e.Value(FieldYear))
	assert.Equal(t, "Africa", e.Value(FieldRegion))
	assert.Equal(t, "Mali", e.Value(FieldCountry))
	assert.Equal(t, "Non-state conflict", e.Value(FieldViolenceType))
	assert.Empty(t, e.Value(Field("nope")))
}

func TestViolenceType_Ordinal(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ViolenceStateBased.Ordinal())
	assert.Equal(t, 1, ViolenceNonState.Ordinal())
	assert.Equal(t, 2, ViolenceOneSided.Ordinal())
	assert.Equal(t, 3, ViolenceType("Riot").Ordinal())
}

func TestConflictPeriodDays(t *testing.T) {
	t.Parallel()

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("forward span", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 9, ConflictPeriodDays(start, start.AddDate(0, 0, 9)))
	})

	t.Run("partial day floors", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1, ConflictPeriodDays(start, start.Add(47*time.Hour)))
	})

	t.Run("equal dates", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0, ConflictPeriodDays(start, start))
	})

	t.Run("reversed dates clamp to zero", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0, ConflictPeriodDays(start, start.AddDate(0, 0, -3)))
	})
}
