package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/config"
)

// AlertType names an alert rule.
type AlertType string

const (
	AlertInvalidSelectionRate AlertType = "invalid_selection_rate"
	AlertLowCacheHitRate      AlertType = "low_cache_hit_rate"
	AlertServerErrors         AlertType = "server_errors"
)

// Alert is one fired rule.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates metric windows against the monitoring thresholds and
// posts what fires to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an alerter for cfg.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// rule inspects one window and reports an alert when it fires.
type rule func(cfg config.MonitoringConfig, w *MetricsSnapshot) (Alert, bool)

var rules = []rule{invalidSelectionRule, cacheHitRule, serverErrorRule}

// Evaluate runs every rule against the window and returns the alerts raised,
// stamped with the current time. Rate rules stay quiet until MinQueries
// queries (or cache lookups) are in the window.
func (a *Alerter) Evaluate(w *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()
	for _, r := range rules {
		if alert, ok := r(a.cfg, w); ok {
			alert.Timestamp = now
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

func invalidSelectionRule(cfg config.MonitoringConfig, w *MetricsSnapshot) (Alert, bool) {
	if cfg.InvalidRateThreshold <= 0 || w.Queries < cfg.MinQueries || w.InvalidRate <= cfg.InvalidRateThreshold {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertInvalidSelectionRate,
		Severity: "medium",
		Message: fmt.Sprintf("%d unknown filter values over %d queries (%.2f per query, threshold %.2f)",
			w.InvalidValues, w.Queries, w.InvalidRate, cfg.InvalidRateThreshold),
		Details: map[string]any{
			"invalid_rate":   w.InvalidRate,
			"threshold":      cfg.InvalidRateThreshold,
			"invalid_values": w.InvalidValues,
			"queries":        w.Queries,
		},
	}, true
}

func cacheHitRule(cfg config.MonitoringConfig, w *MetricsSnapshot) (Alert, bool) {
	lookups := w.CacheHits + w.CacheMisses
	if lookups == 0 || lookups < cfg.MinQueries || w.CacheHitRate >= cfg.MinCacheHitRate {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertLowCacheHitRate,
		Severity: "low",
		Message: fmt.Sprintf("dashboard cache hit rate %.1f%% is under %.1f%%",
			w.CacheHitRate*100, cfg.MinCacheHitRate*100),
		Details: map[string]any{
			"hit_rate": w.CacheHitRate,
			"minimum":  cfg.MinCacheHitRate,
			"hits":     w.CacheHits,
			"misses":   w.CacheMisses,
		},
	}, true
}

func serverErrorRule(_ config.MonitoringConfig, w *MetricsSnapshot) (Alert, bool) {
	if w.HTTPServerError == 0 {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertServerErrors,
		Severity: "high",
		Message:  fmt.Sprintf("%d of %d API responses were 5xx", w.HTTPServerError, w.HTTPRequests),
		Details: map[string]any{
			"server_errors": w.HTTPServerError,
			"requests":      w.HTTPRequests,
		},
	}, true
}

// Notification is the webhook payload; one is posted per check.
type Notification struct {
	Service string    `json:"service"`
	SentAt  time.Time `json:"sent_at"`
	Alerts  []Alert   `json:"alerts"`
}

// SendAlerts posts all alerts to the webhook in one notification and
// returns how many were delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}
	n := Notification{Service: "conflict-dash", SentAt: time.Now().UTC(), Alerts: alerts}
	if err := a.post(ctx, n); err != nil {
		zap.L().Error("monitoring: alert webhook failed",
			zap.Int("alerts", len(alerts)),
			zap.Error(err),
		)
		return 0
	}
	for _, alert := range alerts {
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
	}
	return len(alerts)
}

func (a *Alerter) post(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return eris.Wrap(err, "monitoring: encode notification")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 300 {
		return eris.Errorf("monitoring: webhook status %d", resp.StatusCode)
	}
	return nil
}
