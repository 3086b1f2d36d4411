// Package api serves the query engine and option resolver over HTTP. Every
// data route is a GET taking the selection as year, region, country and
// violence query parameters.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/config"
	"github.com/sells-group/conflict-dash/internal/monitoring"
	"github.com/sells-group/conflict-dash/internal/options"
	"github.com/sells-group/conflict-dash/internal/query"
)

// Server holds the handler dependencies.
type Server struct {
	engine    *query.Engine
	resolver  *options.Resolver
	metrics   *monitoring.Metrics
	collector *monitoring.Collector
	cfg       config.ServerConfig
	topN      int
	log       *zap.Logger
}

// New creates a server. metrics may be nil, which disables /metrics and
// the metrics section of /health.
func New(engine *query.Engine, metrics *monitoring.Metrics, cfg config.ServerConfig, topN int) *Server {
	if topN <= 0 {
		topN = 10
	}
	s := &Server{
		engine:   engine,
		resolver: options.NewResolver(engine.Dataset()),
		metrics:  metrics,
		cfg:      cfg,
		topN:     topN,
		log:      zap.L().With(zap.String("component", "api")),
	}
	if metrics != nil {
		s.collector = monitoring.NewCollector(metrics)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "If-None-Match"},
		ExposedHeaders: []string{"ETag"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.etag)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/summary", s.handleSummary)
		r.Get("/locations", s.handleLocations)
		r.Get("/top", s.handleTop)
		r.Get("/violence", s.handleViolence)
		r.Get("/violence/top", s.handleTopByViolence)
		r.Get("/threshold", s.handleThreshold)
		r.Get("/rankings", s.handleRankings)
		r.Get("/regions/share", s.handleRegionShare)
		r.Get("/treemap", s.handleTreemap)
		r.Get("/details", s.handleDetails)
		r.Get("/options", s.handleAllOptions)
		r.Get("/options/{field}", s.handleOptions)
		r.Get("/geojson", s.handleGeoJSON)
		r.Get("/geojson/centroids", s.handleCentroids)
	})
	return r
}

// NewHTTPServer wraps the handler with the configured timeouts.
func (s *Server) NewHTTPServer(port int) *http.Server {
	return &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
	}
}

// observe counts responses by route pattern and status, and logs them.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, strconv.Itoa(status))
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// etag tags data responses with the dataset version. Results are a pure
// function of the URL and the dataset, so a matching If-None-Match is
// answered with 304.
func (s *Server) etag(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := `"` + s.engine.Dataset().Version() + `"`
		w.Header().Set("ETag", tag)
		w.Header().Set("Cache-Control", "no-cache")
		if match := r.Header.Get("If-None-Match"); match == tag || match == "*" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	writeJSONType(w, status, "application/json", v)
}

func writeJSONType(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
