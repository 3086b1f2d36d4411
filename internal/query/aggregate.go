// Package query computes the dashboard aggregates over a filtered slice of
// events. Every function here is pure: the same input always yields the same
// output and an empty input yields zero values and empty, non-nil slices.
package query

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/conflict-dash/internal/model"
)

// Summary holds the headline card values.
type Summary struct {
	DistinctYears     int   `json:"distinct_years"`
	DistinctRegions   int   `json:"distinct_regions"`
	DistinctCountries int   `json:"distinct_countries"`
	EventCount        int   `json:"event_count"`
	FatalitySum       int64 `json:"fatality_sum"`
}

// Summarize counts events, distinct dimension values and best fatalities.
func Summarize(filtered []model.Event) Summary {
	years := make(map[int]struct{})
	regions := make(map[string]struct{})
	countries := make(map[string]struct{})

	var s Summary
	for i := range filtered {
		e := &filtered[i]
		years[e.Year] = struct{}{}
		regions[e.Region] = struct{}{}
		countries[e.Country] = struct{}{}
		s.FatalitySum += e.Fatalities.Best
	}
	s.EventCount = len(filtered)
	s.DistinctYears = len(years)
	s.DistinctRegions = len(regions)
	s.DistinctCountries = len(countries)
	return s
}

// LocationRow aggregates the events of one (region, country) pair.
type LocationRow struct {
	Region        string `json:"region"`
	Country       string `json:"country"`
	ConflictCount int    `json:"conflict_count"`
	FatalitySum   int64  `json:"fatality_sum"`
	SideA         int64  `json:"side_a"`
	SideB         int64  `json:"side_b"`
	Civilian      int64  `json:"civilian"`
	Unknown       int64  `json:"unknown"`
}

type locationKey struct{ region, country string }

// GroupByLocation returns one row per (region, country) pair in first-seen
// order. Component fatalities are summed independently of best.
func GroupByLocation(filtered []model.Event) []LocationRow {
	rows := make([]LocationRow, 0)
	index := make(map[locationKey]int)
	for i := range filtered {
		e := &filtered[i]
		k := locationKey{e.Region, e.Country}
		pos, ok := index[k]
		if !ok {
			pos = len(rows)
			index[k] = pos
			rows = append(rows, LocationRow{Region: e.Region, Country: e.Country})
		}
		r := &rows[pos]
		r.ConflictCount++
		r.FatalitySum += e.Fatalities.Best
		r.SideA += e.Fatalities.SideA
		r.SideB += e.Fatalities.SideB
		r.Civilian += e.Fatalities.Civilian
		r.Unknown += e.Fatalities.Unknown
	}
	return rows
}

// Metric names a rankable LocationRow column.
type Metric string

const (
	MetricConflicts  Metric = "conflicts"
	MetricFatalities Metric = "fatalities"
	MetricSideA      Metric = "side_a"
	MetricSideB      Metric = "side_b"
	MetricCivilian   Metric = "civilian"
	MetricUnknown    Metric = "unknown"
)

// Metrics lists every metric; ComponentMetrics the four fatality
// components ranked on the fatalities-distribution view.
var (
	Metrics          = []Metric{MetricConflicts, MetricFatalities, MetricSideA, MetricSideB, MetricCivilian, MetricUnknown}
	ComponentMetrics = []Metric{MetricSideA, MetricSideB, MetricCivilian, MetricUnknown}
)

// ParseMetric converts a user-facing name into a Metric.
func ParseMetric(s string) (Metric, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "best", "fatality_sum", "deaths":
		return MetricFatalities, nil
	case "count", "conflict_count", "events":
		return MetricConflicts, nil
	case "civilians", "deaths_civilians":
		return MetricCivilian, nil
	}
	for _, m := range Metrics {
		if key == string(m) {
			return m, nil
		}
	}
	return "", eris.Errorf("unknown metric: %q (valid: conflicts, fatalities, side_a, side_b, civilian, unknown)", s)
}

// Value returns the metric's value for a row.
func (m Metric) Value(r LocationRow) int64 {
	switch m {
	case MetricConflicts:
		return int64(r.ConflictCount)
	case MetricFatalities:
		return r.FatalitySum
	case MetricSideA:
		return r.SideA
	case MetricSideB:
		return r.SideB
	case MetricCivilian:
		return r.Civilian
	case MetricUnknown:
		return r.Unknown
	default:
		return 0
	}
}

// TopN sorts a copy of rows by metric descending, keeping input order among
// ties, and truncates to n. n <= 0 yields an empty result.
func TopN(rows []LocationRow, metric Metric, n int) []LocationRow {
	if n <= 0 {
		return []LocationRow{}
	}
	out := slices.Clone(rows)
	if out == nil {
		out = []LocationRow{}
	}
	slices.SortStableFunc(out, func(a, b LocationRow) int {
		return cmpDesc(metric.Value(a), metric.Value(b))
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Rankings returns the top n rows for each fatality component.
func Rankings(rows []LocationRow, n int) map[Metric][]LocationRow {
	out := make(map[Metric][]LocationRow, len(ComponentMetrics))
	for _, m := range ComponentMetrics {
		out[m] = TopN(rows, m, n)
	}
	return out
}

// ViolenceRow aggregates the events of one violence type.
type ViolenceRow struct {
	ViolenceType model.ViolenceType `json:"violence_type"`
	FatalitySum  int64              `json:"fatality_sum"`
	EventCount   int                `json:"event_count"`
}

// ViolenceBreakdown sums best fatalities per violence type, in the canonical
// type order. Types with no events are omitted.
func ViolenceBreakdown(filtered []model.Event) []ViolenceRow {
	byType := make(map[model.ViolenceType]*ViolenceRow)
	for i := range filtered {
		e := &filtered[i]
		r, ok := byType[e.ViolenceType]
		if !ok {
			r = &ViolenceRow{ViolenceType: e.ViolenceType}
			byType[e.ViolenceType] = r
		}
		r.FatalitySum += e.Fatalities.Best
		r.EventCount++
	}

	rows := make([]ViolenceRow, 0, len(byType))
	for _, r := range byType {
		rows = append(rows, *r)
	}
	slices.SortFunc(rows, func(a, b ViolenceRow) int {
		if d := a.ViolenceType.Ordinal() - b.ViolenceType.Ordinal(); d != 0 {
			return d
		}
		return strings.Compare(string(a.ViolenceType), string(b.ViolenceType))
	})
	return rows
}

// RegionRow is a region with its best fatality sum.
type RegionRow struct {
	Region      string `json:"region"`
	FatalitySum int64  `json:"fatality_sum"`
}

// Threshold partitions regional fatalities by the active-year flag.
type Threshold struct {
	Over  []RegionRow `json:"over"`
	Under []RegionRow `json:"under"`
}

// ThresholdSplit sums best fatalities per region separately for events over
// and under the 25-fatality threshold. Region rows keep first-seen order.
func ThresholdSplit(filtered []model.Event) Threshold {
	var over, under []model.Event
	for i := range filtered {
		if filtered[i].ActiveYear == model.ActiveOverThreshold {
			over = append(over, filtered[i])
		} else {
			under = append(under, filtered[i])
		}
	}
	return Threshold{Over: sumByRegion(over), Under: sumByRegion(under)}
}

func sumByRegion(events []model.Event) []RegionRow {
	rows := make([]RegionRow, 0)
	index := make(map[string]int)
	for i := range events {
		pos, ok := index[events[i].Region]
		if !ok {
			pos = len(rows)
			index[events[i].Region] = pos
			rows = append(rows, RegionRow{Region: events[i].Region})
		}
		rows[pos].FatalitySum += events[i].Fatalities.Best
	}
	return rows
}

// RegionCount is a region with its number of events.
type RegionCount struct {
	Region        string `json:"region"`
	ConflictCount int    `json:"conflict_count"`
}

// RegionShare counts events per region in first-seen order.
func RegionShare(filtered []model.Event) []RegionCount {
	rows := make([]RegionCount, 0)
	index := make(map[string]int)
	for i := range filtered {
		pos, ok := index[filtered[i].Region]
		if !ok {
			pos = len(rows)
			index[filtered[i].Region] = pos
			rows = append(rows, RegionCount{Region: filtered[i].Region})
		}
		rows[pos].ConflictCount++
	}
	return rows
}

// ViolenceLocationRow is the best fatality sum of one (violence type,
// region, country) group.
type ViolenceLocationRow struct {
	ViolenceType model.ViolenceType `json:"violence_type"`
	Region       string             `json:"region"`
	Country      string             `json:"country"`
	FatalitySum  int64              `json:"fatality_sum"`
}

type violenceLocationKey struct {
	violence        model.ViolenceType
	region, country string
}

// TopByViolence groups by (violence type, region, country) and returns the n
// groups with the most fatalities, ties in first-seen order.
func TopByViolence(filtered []model.Event, n int) []ViolenceLocationRow {
	if n <= 0 {
		return []ViolenceLocationRow{}
	}
	rows := make([]ViolenceLocationRow, 0)
	index := make(map[violenceLocationKey]int)
	for i := range filtered {
		e := &filtered[i]
		k := violenceLocationKey{e.ViolenceType, e.Region, e.Country}
		pos, ok := index[k]
		if !ok {
			pos = len(rows)
			index[k] = pos
			rows = append(rows, ViolenceLocationRow{ViolenceType: e.ViolenceType, Region: e.Region, Country: e.Country})
		}
		rows[pos].FatalitySum += e.Fatalities.Best
	}
	slices.SortStableFunc(rows, func(a, b ViolenceLocationRow) int {
		return cmpDesc(a.FatalitySum, b.FatalitySum)
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func cmpDesc[T int | int64](a, b T) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}
