package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Pacer throttles requests to one host. It drifts up by 20% per success
// (to at most twice its starting rate) and halves on every 429 (to at least
// a quarter of it).
type Pacer struct {
	mu      sync.Mutex
	lim     *rate.Limiter
	current rate.Limit
	floor   rate.Limit
	ceiling rate.Limit
}

func NewPacer(start rate.Limit, burst int) *Pacer {
	return &Pacer{
		lim:     rate.NewLimiter(start, burst),
		current: start,
		floor:   start / 4,
		ceiling: start * 2,
	}
}

func (p *Pacer) Wait(ctx context.Context) error { return p.lim.Wait(ctx) }

func (p *Pacer) Rate() rate.Limit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Pacer) ease() {
	p.set(min(p.current*1.2, p.ceiling))
}

func (p *Pacer) throttle() {
	p.set(max(p.current/2, p.floor))
	zap.L().Warn("http: throttled by host", zap.Float64("rate", float64(p.Rate())))
}

func (p *Pacer) set(r rate.Limit) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = r
	p.lim.SetLimit(r)
}
