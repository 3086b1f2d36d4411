package main

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/conflict-dash/internal/dataset"
	"github.com/sells-group/conflict-dash/internal/filter"
	"github.com/sells-group/conflict-dash/internal/model"
	"github.com/sells-group/conflict-dash/internal/monitoring"
	"github.com/sells-group/conflict-dash/internal/query"
)

// loadDataset loads the configured source and records the load in m,
// which may be nil.
func loadDataset(ctx context.Context, m *monitoring.Metrics) (*dataset.Dataset, model.Labels, error) {
	if err := cfg.Validate("load"); err != nil {
		return nil, model.Labels{}, err
	}
	started := time.Now()
	ds, labels, err := dataset.LoadConfigured(ctx, cfg.Dataset)
	if err != nil {
		return nil, labels, err
	}
	m.ObserveLoad(ds.Len(), time.Since(started), ds.LoadedAt())
	return ds, labels, nil
}

func engineOptions(m *monitoring.Metrics) query.Options {
	entries := 0
	if cfg.Cache.Enabled {
		entries = cfg.Cache.MaxEntries
	}
	return query.Options{
		TopN:         cfg.Query.TopN,
		PageSize:     cfg.Query.PageSize,
		CacheEntries: entries,
		Metrics:      m,
	}
}

// selectionFlags holds the filter flags shared by report and options.
type selectionFlags struct {
	years     []int
	regions   []string
	countries []string
	violence  []string
}

func (f *selectionFlags) register(cmd *cobra.Command, fields ...model.Field) {
	for _, field := range fields {
		switch field {
		case model.FieldYear:
			cmd.Flags().IntSliceVar(&f.years, "year", nil, "restrict to years (repeatable or comma-separated)")
		case model.FieldRegion:
			cmd.Flags().StringSliceVar(&f.regions, "region", nil, "restrict to regions")
		case model.FieldCountry:
			cmd.Flags().StringSliceVar(&f.countries, "country", nil, "restrict to countries")
		case model.FieldViolenceType:
			cmd.Flags().StringSliceVar(&f.violence, "violence", nil, "restrict to violence types (state-based, non-state, one-sided)")
		}
	}
}

// selection parses the flags the same way the API parses query parameters.
func (f *selectionFlags) selection() (filter.Selection, error) {
	q := url.Values{}
	for _, y := range f.years {
		q.Add("year", strconv.Itoa(y))
	}
	q["region"] = f.regions
	q["country"] = f.countries
	q["violence"] = f.violence
	return filter.FromQuery(q)
}
