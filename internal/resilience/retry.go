// Package resilience retries transient failures while opening dataset sources.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy says how often and how patiently a source open is retried.
// Zero fields fall back to the defaults of DefaultPolicy.
type Policy struct {
	// Attempts counts the first try. 1 disables retries.
	Attempts int
	// Base is the delay before the first retry; it doubles per retry up to Cap.
	Base time.Duration
	Cap  time.Duration
	// Jitter spreads each delay by up to this fraction either way.
	Jitter float64

	// Retryable overrides IsTransient.
	Retryable func(error) bool
	// OnRetry runs before each wait with the 1-based retry number.
	OnRetry func(retry int, err error)
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Base: 500 * time.Millisecond, Cap: 30 * time.Second, Jitter: 0.25}
}

// ForSource is the policy for opening source with maxAttempts tries (the
// default when zero). Every retry is logged at warn.
func ForSource(source string, maxAttempts int) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.Attempts = maxAttempts
	}
	p.OnRetry = func(retry int, err error) {
		zap.L().Warn("source: retrying open",
			zap.String("source", source),
			zap.Int("retry", retry),
			zap.Error(err),
		)
	}
	return p
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Base <= 0 {
		p.Base = d.Base
	}
	if p.Cap <= 0 {
		p.Cap = d.Cap
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// delay is the wait before retry n (0-based).
func (p Policy) delay(n int) time.Duration {
	d := p.Base
	for i := 0; i < n && d < p.Cap; i++ {
		d *= 2
	}
	d = min(d, p.Cap)
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	return max(d, 0)
}

// Retry calls fn until it succeeds, returns a non-retryable error, runs out
// of attempts or ctx ends. The last error is returned with T's zero value.
func Retry[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.normalized()
	var zero T
	for n := 0; ; n++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if n+1 >= p.Attempts || ctx.Err() != nil || !p.Retryable(err) {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(n+1, err)
		}
		select {
		case <-ctx.Done():
			return zero, err
		case <-time.After(p.delay(n)):
		}
	}
}
