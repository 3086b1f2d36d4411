package query

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/dataset"
	"github.com/sells-group/conflict-dash/internal/filter"
	"github.com/sells-group/conflict-dash/internal/model"
	"github.com/sells-group/conflict-dash/internal/monitoring"
)

// Options configures an Engine.
type Options struct {
	// TopN is the ranking size used by Dashboard.
	TopN int
	// PageSize is the detail-table page size used by Dashboard.
	PageSize int
	// CacheEntries bounds the dashboard cache; 0 disables it.
	CacheEntries int
	Metrics      *monitoring.Metrics
}

// Engine answers dashboard queries against one dataset. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	ds      *dataset.Dataset
	opts    Options
	cache   *ResultCache
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewEngine creates an engine over ds.
func NewEngine(ds *dataset.Dataset, opts Options) *Engine {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Engine{
		ds:      ds,
		opts:    opts,
		cache:   NewResultCache(opts.CacheEntries, opts.Metrics),
		metrics: opts.Metrics,
		log:     zap.L().With(zap.String("component", "query")),
	}
}

// Dataset returns the underlying dataset.
func (e *Engine) Dataset() *dataset.Dataset { return e.ds }

// CacheStats reports dashboard cache statistics.
func (e *Engine) CacheStats() CacheStats { return e.cache.Stats() }

// Check reports selected values that do not occur in the dataset. They are
// logged and counted but never fail a query; they simply match nothing.
func (e *Engine) Check(sel filter.Selection) []string {
	invalid := filter.Check(sel, e.ds)
	if len(invalid) == 0 {
		return nil
	}
	for _, v := range invalid {
		e.metrics.InvalidSelection(string(v.Field))
	}
	ise := &filter.InvalidSelectionError{Invalid: invalid}
	e.log.Warn("selection contains unknown values", zap.Error(ise))
	return ise.Warnings()
}

// Filter returns copies of the events matching sel.
func (e *Engine) Filter(sel filter.Selection) []model.Event {
	return e.ds.Select(filter.Build(sel))
}

func (e *Engine) observe(view string, started time.Time) {
	e.metrics.ObserveQuery(view, time.Since(started))
}

func (e *Engine) Summary(sel filter.Selection) Summary {
	defer e.observe("summary", time.Now())
	return Summarize(e.Filter(sel))
}

func (e *Engine) Locations(sel filter.Selection) []LocationRow {
	defer e.observe("locations", time.Now())
	return GroupByLocation(e.Filter(sel))
}

// Top ranks locations by metric.
func (e *Engine) Top(sel filter.Selection, metric Metric, n int) []LocationRow {
	defer e.observe("top", time.Now())
	return TopN(GroupByLocation(e.Filter(sel)), metric, n)
}

func (e *Engine) Violence(sel filter.Selection) []ViolenceRow {
	defer e.observe("violence", time.Now())
	return ViolenceBreakdown(e.Filter(sel))
}

func (e *Engine) Threshold(sel filter.Selection) Threshold {
	defer e.observe("threshold", time.Now())
	return ThresholdSplit(e.Filter(sel))
}

// Rankings returns the top n locations for each fatality component.
func (e *Engine) Rankings(sel filter.Selection, n int) map[Metric][]LocationRow {
	defer e.observe("rankings", time.Now())
	return Rankings(GroupByLocation(e.Filter(sel)), n)
}

func (e *Engine) RegionShare(sel filter.Selection) []RegionCount {
	defer e.observe("region_share", time.Now())
	return RegionShare(e.Filter(sel))
}

func (e *Engine) TopByViolence(sel filter.Selection, n int) []ViolenceLocationRow {
	defer e.observe("top_by_violence", time.Now())
	return TopByViolence(e.Filter(sel), n)
}

func (e *Engine) Treemap(sel filter.Selection) Treemap {
	defer e.observe("treemap", time.Now())
	return BuildTreemap(GroupByLocation(e.Filter(sel)))
}

// DetailQuery selects one page of the detail table. An empty Sort keeps
// the default (conflict period, best) ordering.
type DetailQuery struct {
	Page     int
	PageSize int
	Sort     string
	Desc     bool
}

// Details returns one page of detail rows. It fails only on an unknown sort
// column.
func (e *Engine) Details(sel filter.Selection, q DetailQuery) (DetailPage, error) {
	defer e.observe("details", time.Now())
	rows := DetailRows(e.Filter(sel))
	if q.Sort != "" {
		sorted, err := SortDetails(rows, q.Sort, q.Desc)
		if err != nil {
			return DetailPage{}, err
		}
		rows = sorted
	}
	if q.PageSize <= 0 {
		q.PageSize = e.opts.PageSize
	}
	return Paginate(rows, q.Page, q.PageSize), nil
}

// Dashboard is every view of one selection.
type Dashboard struct {
	Version       string                   `json:"version"`
	Selection     filter.Selection         `json:"selection"`
	Empty         bool                     `json:"empty"`
	Warnings      []string                 `json:"warnings,omitempty"`
	Summary       Summary                  `json:"summary"`
	Locations     []LocationRow            `json:"locations"`
	Top           []LocationRow            `json:"top"`
	Violence      []ViolenceRow            `json:"violence"`
	Threshold     Threshold                `json:"threshold"`
	RegionShare   []RegionCount            `json:"region_share"`
	Rankings      map[Metric][]LocationRow `json:"rankings"`
	TopByViolence []ViolenceLocationRow    `json:"top_by_violence"`
	Treemap       Treemap                  `json:"treemap"`
	Details       DetailPage               `json:"details"`
}

// Dashboard computes every view for sel in one pass over the filtered
// events. Results are cached by selection and shared between callers, who
// must not modify them; warnings are recomputed per call.
func (e *Engine) Dashboard(sel filter.Selection) *Dashboard {
	defer e.observe("dashboard", time.Now())
	warnings := e.Check(sel)
	key := e.ds.Version() + "?" + sel.Key()

	d, hit := e.cache.GetOrCompute(key, func() *Dashboard { return e.compute(sel) })
	if hit {
		e.log.Debug("dashboard cache hit", zap.String("key", key))
	}

	out := *d
	out.Warnings = warnings
	return &out
}

func (e *Engine) compute(sel filter.Selection) *Dashboard {
	filtered := e.Filter(sel)
	locations := GroupByLocation(filtered)
	return &Dashboard{
		Version:       e.ds.Version(),
		Selection:     sel,
		Empty:         len(filtered) == 0,
		Summary:       Summarize(filtered),
		Locations:     locations,
		Top:           TopN(locations, MetricFatalities, e.opts.TopN),
		Violence:      ViolenceBreakdown(filtered),
		Threshold:     ThresholdSplit(filtered),
		RegionShare:   RegionShare(filtered),
		Rankings:      Rankings(locations, e.opts.TopN),
		TopByViolence: TopByViolence(filtered, e.opts.TopN),
		Treemap:       BuildTreemap(locations),
		Details:       Paginate(DetailRows(filtered), 1, e.opts.PageSize),
	}
}
