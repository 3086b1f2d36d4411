// Package dataset loads the conflict-event table once and serves read-only
// views of it.
package dataset

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/config"
	"github.com/sells-group/conflict-dash/internal/model"
	"github.com/sells-group/conflict-dash/internal/source"
)

// Dataset is the immutable, normalized event table. It is safe for
// concurrent use without locking.
type Dataset struct {
	events   []model.Event
	distinct map[model.Field][]string
	years    []int
	version  string
	loadedAt time.Time
	source   string
	coords   bool
}

// Load reads every row of src, normalizes codes through labels and returns
// the dataset. Any failure aborts the load with a *LoadError; a partial
// dataset is never returned.
func Load(ctx context.Context, src source.Source, labels model.Labels) (*Dataset, error) {
	log := zap.L().With(zap.String("component", "dataset"), zap.String("source", src.Name()))
	started := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := src.Stream(ctx)
	fail := func(le *LoadError) (*Dataset, error) {
		cancel()
		for range rowCh { //nolint:revive // drain so the producer exits
		}
		le.Source = src.Name()
		return nil, le
	}

	var (
		h      *header
		events []model.Event
		dataN  int
	)
	for row := range rowCh {
		if h == nil {
			var missing []string
			h, missing = resolveHeader(row.Fields)
			if len(missing) > 0 {
				return fail(&LoadError{Kind: KindSchema, Err: eris.Errorf("missing required columns: %v", missing)})
			}
			continue
		}

		dataN++
		ev, le := parseRow(h, row.Fields, labels)
		if le != nil {
			le.Row = dataN
			le.Line = row.Line
			return fail(le)
		}
		events = append(events, ev)
	}

	for err := range errCh {
		if err != nil {
			kind := KindParse
			if h == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				kind = KindUnreachable
			}
			return fail(&LoadError{Kind: kind, Row: dataN, Err: err})
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(&LoadError{Kind: KindUnreachable, Row: dataN, Err: err})
	}
	if h == nil {
		return fail(&LoadError{Kind: KindEmpty, Err: eris.New("source has no header row")})
	}
	if len(events) == 0 {
		return fail(&LoadError{Kind: KindEmpty, Err: eris.New("source has no data rows")})
	}

	d := newDataset(events, src.Name(), h.hasCoords)
	log.Info("dataset loaded",
		zap.Int("rows", len(events)),
		zap.Int("years", len(d.years)),
		zap.Int("countries", len(d.distinct[model.FieldCountry])),
		zap.Bool("coordinates", d.coords),
		zap.String("version", d.version),
		zap.Duration("elapsed", time.Since(started)),
	)
	return d, nil
}

// LoadConfigured opens the source named by cfg, loads the label tables and
// loads the dataset. Failures to open the source are reported as
// unreachable.
func LoadConfigured(ctx context.Context, cfg config.DatasetConfig) (*Dataset, model.Labels, error) {
	labels, err := model.LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, model.Labels{}, &LoadError{Kind: KindSchema, Source: cfg.LabelsPath, Err: err}
	}

	src, err := source.Open(ctx, cfg)
	if err != nil {
		return nil, labels, &LoadError{Kind: KindUnreachable, Source: cfg.Source, Err: err}
	}
	defer src.Close() //nolint:errcheck

	d, err := Load(ctx, src, labels)
	if err != nil {
		return nil, labels, err
	}
	return d, labels, nil
}

// FromEvents builds a dataset directly from already normalized events.
// ConflictPeriod is recomputed from the dates.
func FromEvents(name string, events []model.Event) *Dataset {
	cp := slices.Clone(events)
	coords := false
	for i := range cp {
		cp[i].ConflictPeriod = model.ConflictPeriodDays(cp[i].DateStart, cp[i].DateEnd)
		coords = coords || cp[i].HasCoordinates
	}
	return newDataset(cp, name, coords)
}

func newDataset(events []model.Event, name string, coords bool) *Dataset {
	d := &Dataset{
		events:   events,
		distinct: make(map[model.Field][]string, len(model.Fields)),
		version:  uuid.New().String(),
		loadedAt: time.Now().UTC(),
		source:   name,
		coords:   coords,
	}

	yearSet := make(map[int]struct{})
	for _, f := range model.Fields {
		set := make(map[string]struct{})
		for i := range events {
			set[events[i].Value(f)] = struct{}{}
			if f == model.FieldYear {
				yearSet[events[i].Year] = struct{}{}
			}
		}
		vals := make([]string, 0, len(set))
		for v := range set {
			vals = append(vals, v)
		}
		slices.Sort(vals)
		d.distinct[f] = vals
	}

	d.years = make([]int, 0, len(yearSet))
	for y := range yearSet {
		d.years = append(d.years, y)
	}
	slices.Sort(d.years)

	years := make([]string, len(d.years))
	for i, y := range d.years {
		years[i] = strconv.Itoa(y)
	}
	d.distinct[model.FieldYear] = years
	return d
}

func parseRow(h *header, fields []string, labels model.Labels) (model.Event, *LoadError) {
	get := func(c column) string {
		i := h.index[c]
		if i < 0 || i >= len(fields) {
			return ""
		}
		return fields[i]
	}
	bad := func(c column, err error) *LoadError {
		return &LoadError{Kind: KindParse, Column: c.name(), Err: err}
	}

	var ev model.Event
	ev.ID = text(get(colID))
	if ev.ID == "" {
		return ev, bad(colID, eris.New("empty id"))
	}

	year, err := parseInt(get(colYear))
	if err != nil {
		return ev, bad(colYear, err)
	}
	ev.Year = int(year)

	ev.Region = text(get(colRegion))
	ev.Country = text(get(colCountry))
	ev.ConflictName = text(get(colConflictName))

	code, err := parseInt(get(colViolence))
	if err != nil {
		return ev, bad(colViolence, err)
	}
	if ev.ViolenceType, err = labels.Violence(int(code)); err != nil {
		return ev, bad(colViolence, err)
	}

	if code, err = parseInt(get(colActive)); err != nil {
		return ev, bad(colActive, err)
	}
	if ev.ActiveYear, err = labels.Active(int(code)); err != nil {
		return ev, bad(colActive, err)
	}

	if ev.DateStart, err = parseDate(get(colDateStart)); err != nil {
		return ev, bad(colDateStart, err)
	}
	if ev.DateEnd, err = parseDate(get(colDateEnd)); err != nil {
		return ev, bad(colDateEnd, err)
	}
	ev.ConflictPeriod = model.ConflictPeriodDays(ev.DateStart, ev.DateEnd)

	if code, err = parseInt(get(colWherePrec)); err != nil {
		return ev, bad(colWherePrec, err)
	}
	if ev.LocationPrecision, err = labels.LocationPrecision(int(code)); err != nil {
		return ev, bad(colWherePrec, err)
	}
	if code, err = parseInt(get(colDatePrec)); err != nil {
		return ev, bad(colDatePrec, err)
	}
	if ev.DatePrecision, err = labels.DatePrecision(int(code)); err != nil {
		return ev, bad(colDatePrec, err)
	}

	counts := []struct {
		col column
		dst *int64
	}{
		{colDeathsA, &ev.Fatalities.SideA},
		{colDeathsB, &ev.Fatalities.SideB},
		{colDeathsCivilians, &ev.Fatalities.Civilian},
		{colDeathsUnknown, &ev.Fatalities.Unknown},
		{colBest, &ev.Fatalities.Best},
	}
	for _, c := range counts {
		n, err := parseCount(get(c.col))
		if err != nil {
			return ev, bad(c.col, err)
		}
		*c.dst = n
	}

	if h.hasCoords {
		lat, lon := get(colLatitude), get(colLongitude)
		if text(lat) != "" && text(lon) != "" {
			if ev.Latitude, err = parseCoord(lat, 90); err != nil {
				return ev, bad(colLatitude, err)
			}
			if ev.Longitude, err = parseCoord(lon, 180); err != nil {
				return ev, bad(colLongitude, err)
			}
			ev.HasCoordinates = true
		}
	}

	return ev, nil
}

// AllEvents returns a copy of every event in dataset order.
func (d *Dataset) AllEvents() []model.Event {
	return slices.Clone(d.events)
}

// Select returns copies of the events matching pred, in dataset order. A nil
// predicate matches everything.
func (d *Dataset) Select(pred func(*model.Event) bool) []model.Event {
	if pred == nil {
		return d.AllEvents()
	}
	out := make([]model.Event, 0)
	for i := range d.events {
		if pred(&d.events[i]) {
			out = append(out, d.events[i])
		}
	}
	return out
}

// DistinctValues returns the sorted distinct values of a dimension. Years
// sort numerically. The returned slice is a copy.
func (d *Dataset) DistinctValues(f model.Field) []string {
	return slices.Clone(d.distinct[f])
}

// DistinctYears returns the sorted distinct years.
func (d *Dataset) DistinctYears() []int {
	return slices.Clone(d.years)
}

// Len returns the number of events.
func (d *Dataset) Len() int { return len(d.events) }

// Version is a random identifier assigned when the dataset was loaded.
func (d *Dataset) Version() string { return d.version }

// LoadedAt returns when the dataset was loaded.
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// SourceName returns the name of the source the dataset was loaded from.
func (d *Dataset) SourceName() string { return d.source }

// HasCoordinates reports whether any event carries a location.
func (d *Dataset) HasCoordinates() bool { return d.coords }
