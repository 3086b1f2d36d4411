package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/conflict-dash/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates alert rules on a fixed interval. Every check looks at
// the traffic since the previous check, not at lifetime totals.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	every     time.Duration
	prev      *MetricsSnapshot
}

func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	every := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if every <= 0 {
		every = defaultCheckInterval
	}
	return &Checker{collector: collector, alerter: alerter, every: every}
}

// Run blocks, checking once per interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().Named("checker")
	log.Info("monitoring: alert checks enabled", zap.Duration("every", c.every))

	t := time.NewTicker(c.every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.Check(ctx, log)
		case <-ctx.Done():
			log.Info("monitoring: alert checks stopped")
			return
		}
	}
}

// Check collects a snapshot, diffs it against the previous one and returns
// whatever rules fired on that window.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) []Alert {
	cur, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: collect", zap.Error(err))
		return nil
	}
	window := cur.Since(c.prev)
	c.prev = cur

	fired := c.alerter.Evaluate(window)
	if len(fired) > 0 {
		delivered := c.alerter.SendAlerts(ctx, fired)
		log.Info("monitoring: rules fired",
			zap.Int("fired", len(fired)),
			zap.Int("delivered", delivered),
			zap.Int("window_queries", window.Queries),
		)
	}
	return fired
}
