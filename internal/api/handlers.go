package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/filter"
	"github.com/sells-group/conflict-dash/internal/geo"
	"github.com/sells-group/conflict-dash/internal/model"
	"github.com/sells-group/conflict-dash/internal/options"
	"github.com/sells-group/conflict-dash/internal/query"
)

// Envelope wraps a single view with the selection it answers.
type Envelope struct {
	Version   string           `json:"version"`
	Selection filter.Selection `json:"selection"`
	Warnings  []string         `json:"warnings,omitempty"`
	Data      any              `json:"data"`
}

// selection parses the filter parameters, writing a 400 on failure.
func (s *Server) selection(w http.ResponseWriter, r *http.Request) (filter.Selection, bool) {
	sel, err := filter.FromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return filter.Selection{}, false
	}
	return sel, true
}

func (s *Server) reply(w http.ResponseWriter, sel filter.Selection, data any) {
	writeJSON(w, http.StatusOK, Envelope{
		Version:   s.engine.Dataset().Version(),
		Selection: sel,
		Warnings:  s.engine.Check(sel),
		Data:      data,
	})
}

func intParam(q url.Values, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Errorf("invalid %s %q", key, raw)
	}
	if n < lo || n > hi {
		return 0, eris.Errorf("%s must be between %d and %d", key, lo, hi)
	}
	return n, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ds := s.engine.Dataset()
	body := map[string]any{
		"status": "ok",
		"dataset": map[string]any{
			"source":          ds.SourceName(),
			"rows":            ds.Len(),
			"version":         ds.Version(),
			"loaded_at":       ds.LoadedAt().UTC().Format(time.RFC3339),
			"has_coordinates": ds.HasCoordinates(),
		},
		"cache": s.engine.CacheStats(),
	}
	if s.collector != nil {
		snap, err := s.collector.Collect(r.Context())
		if err != nil {
			s.log.Warn("health: collect metrics", zap.Error(err))
		} else {
			body["metrics"] = snap
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Dashboard(sel))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	s.reply(w, sel, s.engine.Summary(sel))
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	s.reply(w, sel, s.engine.Locations(sel))
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	metric := query.MetricFatalities
	if raw := q.Get("metric"); raw != "" {
		m, err := query.ParseMetric(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		metric = m
	}
	n, err := intParam(q, "n", s.topN, 1, 1000)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.reply(w, sel, s.engine.Top(sel, metric, n))
}

func (s *Server) handleViolence(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	s.reply(w, sel, s.engine.Violence(sel))
}

func (s *Server) handleTopByViolence(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	n, err := intParam(r.URL.Query(), "n", s.topN, 1, 1000)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.reply(w, sel, s.engine.TopByViolence(sel, n))
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	s.reply(w, sel, s.engine.Threshold(sel))
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	n, err := intParam(r.URL.Query(), "n", s.topN, 1, 1000)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.reply(w, sel, s.engine.Rankings(sel, n))
}

func (s *Server) handleRegionShare(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	s.reply(w, sel, s.engine.RegionShare(sel))
}

func (s *Server) handleTreemap(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	s.reply(w, sel, s.engine.Treemap(sel))
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, err := intParam(q, "page", 1, 1, 1<<30)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	size, err := intParam(q, "page_size", 0, 1, 1000)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	dq := query.DetailQuery{Page: page, PageSize: size, Sort: q.Get("sort")}
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		dq.Desc = true
	default:
		writeError(w, http.StatusBadRequest, eris.Errorf("order must be asc or desc"))
		return
	}

	result, err := s.engine.Details(sel, dq)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.reply(w, sel, result)
}

// OptionList is the option response for one control.
type OptionList struct {
	Field       model.Field          `json:"field"`
	Upstream    []model.Field        `json:"upstream"`
	Options     []string             `json:"options"`
	Definitions []options.Definition `json:"definitions,omitempty"`
}

func (s *Server) optionList(f model.Field, sel filter.Selection) OptionList {
	out := OptionList{
		Field:    f,
		Upstream: options.Upstream(f),
		Options:  s.resolver.Options(f, sel),
	}
	if out.Upstream == nil {
		out.Upstream = []model.Field{}
	}
	if f == model.FieldViolenceType {
		out.Definitions = options.Definitions
	}
	return out
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	f, err := model.ParseField(chi.URLParam(r, "field"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	s.reply(w, sel, s.optionList(f, sel))
}

// handleAllOptions returns every control's options, or only the controls
// downstream of ?changed= when it is set.
func (s *Server) handleAllOptions(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	fields := model.Fields
	if raw := r.URL.Query().Get("changed"); raw != "" {
		changed, err := model.ParseField(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		fields = options.Downstream(changed)
	}
	out := make([]OptionList, 0, len(fields))
	for _, f := range fields {
		out = append(out, s.optionList(f, sel))
	}
	s.reply(w, sel, out)
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	s.engine.Check(sel)
	writeJSONType(w, http.StatusOK, "application/geo+json", geo.FeatureCollection(s.engine.Filter(sel)))
}

func (s *Server) handleCentroids(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection(w, r)
	if !ok {
		return
	}
	s.reply(w, sel, geo.Centroids(s.engine.Filter(sel)))
}
