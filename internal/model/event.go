package model

import (
	"time"
)

// DateLayout is the timestamp layout used by the UCDP GED exports.
const DateLayout = "2006/01/02 15:04:05"

// ViolenceType is the UCDP category of organized violence.
type ViolenceType string

const (
	ViolenceStateBased ViolenceType = "State-based conflict"
	ViolenceNonState   ViolenceType = "Non-state conflict"
	ViolenceOneSided   ViolenceType = "One-sided violence"
)

// ViolenceTypes lists the violence types in presentation order.
var ViolenceTypes = []ViolenceType{ViolenceStateBased, ViolenceNonState, ViolenceOneSided}

// Ordinal returns the position of v in ViolenceTypes, or len(ViolenceTypes) if unknown.
func (v ViolenceType) Ordinal() int {
	for i, t := range ViolenceTypes {
		if t == v {
			return i
		}
	}
	return len(ViolenceTypes)
}

// ActiveYear records whether the responsible party crossed the 25 annual
// fatalities threshold.
type ActiveYear string

const (
	ActiveOverThreshold  ActiveYear = "Over 25 fatalities"
	ActiveUnderThreshold ActiveYear = "Under 25 fatalities"
)

// Precision is an ordinal granularity estimate for a location or a date.
// Code 1 is the most precise.
type Precision struct {
	Code  int    `json:"code"`
	Label string `json:"label"`
}

// Fatalities holds the UCDP fatality estimates for an event. Best is the
// authoritative total and is not required to equal the sum of the components.
type Fatalities struct {
	Best     int64 `json:"best"`
	SideA    int64 `json:"side_a"`
	SideB    int64 `json:"side_b"`
	Civilian int64 `json:"civilian"`
	Unknown  int64 `json:"unknown"`
}

// Event is one conflict-related incident after code normalization.
type Event struct {
	ID                string       `json:"id"`
	Year              int          `json:"year"`
	Region            string       `json:"region"`
	Country           string       `json:"country"`
	ConflictName      string       `json:"conflict_name"`
	ViolenceType      ViolenceType `json:"violence_type"`
	ActiveYear        ActiveYear   `json:"active_year"`
	DateStart         time.Time    `json:"date_start"`
	DateEnd           time.Time    `json:"date_end"`
	LocationPrecision Precision    `json:"location_precision"`
	DatePrecision     Precision    `json:"date_precision"`
	Fatalities        Fatalities   `json:"fatalities"`

	// ConflictPeriod is the event span in whole days, never negative.
	ConflictPeriod int `json:"conflict_period"`

	HasCoordinates bool    `json:"-"`
	Latitude       float64 `json:"latitude,omitempty"`
	Longitude      float64 `json:"longitude,omitempty"`
}

// ConflictPeriodDays returns the whole days between start and end, clamped at
// zero when end precedes start.
func ConflictPeriodDays(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
