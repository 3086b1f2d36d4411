package monitoring

import (
	"context"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/rotisserie/eris"
)

// MetricsSnapshot holds a point-in-time view of serving health. Counters
// are cumulative since the process started.
type MetricsSnapshot struct {
	DatasetRows     int     `json:"dataset_rows"`
	LoadSeconds     float64 `json:"load_seconds"`
	Queries         int     `json:"queries"`
	CacheHits       int     `json:"cache_hits"`
	CacheMisses     int     `json:"cache_misses"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	InvalidValues   int     `json:"invalid_values"`
	InvalidRate     float64 `json:"invalid_rate"`
	HTTPRequests    int     `json:"http_requests"`
	HTTPServerError int     `json:"http_server_errors"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector builds snapshots from the metrics registry.
type Collector struct {
	metrics *Metrics
}

// NewCollector creates a new snapshot collector.
func NewCollector(m *Metrics) *Collector {
	return &Collector{metrics: m}
}

// Collect gathers the current counter values.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	families, err := c.metrics.Registry().Gather()
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: gather metrics")
	}

	snap := &MetricsSnapshot{CollectedAt: time.Now().UTC()}
	for _, fam := range families {
		switch fam.GetName() {
		case namespace + "_dataset_rows":
			snap.DatasetRows = int(sumValues(fam))
		case namespace + "_dataset_load_seconds":
			snap.LoadSeconds = sumValues(fam)
		case namespace + "_queries_total":
			snap.Queries = int(sumValues(fam))
		case namespace + "_cache_hits_total":
			snap.CacheHits = int(sumValues(fam))
		case namespace + "_cache_misses_total":
			snap.CacheMisses = int(sumValues(fam))
		case namespace + "_invalid_selection_values_total":
			snap.InvalidValues = int(sumValues(fam))
		case namespace + "_http_requests_total":
			for _, m := range fam.GetMetric() {
				n := int(m.GetCounter().GetValue())
				snap.HTTPRequests += n
				if code := labelValue(m, "code"); len(code) == 3 && code[0] == '5' {
					snap.HTTPServerError += n
				}
			}
		}
	}

	if lookups := snap.CacheHits + snap.CacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(snap.CacheHits) / float64(lookups)
	}
	if snap.Queries > 0 {
		snap.InvalidRate = float64(snap.InvalidValues) / float64(snap.Queries)
	}
	return snap, nil
}

func sumValues(fam *dto.MetricFamily) float64 {
	var total float64
	for _, m := range fam.GetMetric() {
		switch {
		case m.GetCounter() != nil:
			total += m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			total += m.GetGauge().GetValue()
		}
	}
	return total
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// Since returns the counter deltas between prev and s. Gauges keep their
// current values. A nil prev returns a copy of s.
func (s *MetricsSnapshot) Since(prev *MetricsSnapshot) *MetricsSnapshot {
	d := *s
	if prev == nil {
		return &d
	}
	d.Queries -= prev.Queries
	d.CacheHits -= prev.CacheHits
	d.CacheMisses -= prev.CacheMisses
	d.InvalidValues -= prev.InvalidValues
	d.HTTPRequests -= prev.HTTPRequests
	d.HTTPServerError -= prev.HTTPServerError

	d.CacheHitRate, d.InvalidRate = 0, 0
	if lookups := d.CacheHits + d.CacheMisses; lookups > 0 {
		d.CacheHitRate = float64(d.CacheHits) / float64(lookups)
	}
	if d.Queries > 0 {
		d.InvalidRate = float64(d.InvalidValues) / float64(d.Queries)
	}
	return &d
}
