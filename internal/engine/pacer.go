package engine

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

const secondsPerDay = 86400

// Pacer spaces visit dispatches so the configured daily total is met on
// average. Burst is capped at the concurrency limit so an idle period can
// never release more visits than there are worker slots.
type Pacer struct {
	limiter *rate.Limiter
	rps     float64
}

// NewPacer builds a pacer for the given visits-per-day target. A
// non-positive target disables pacing entirely.
func NewPacer(visitsPerDay float64, concurrency int) *Pacer {
	if visitsPerDay <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	rps := visitsPerDay / secondsPerDay
	burst := int(math.Ceil(rps))
	if concurrency > 0 && burst > concurrency {
		burst = concurrency
	}
	if burst < 1 {
		burst = 1
	}
	return &Pacer{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
	}
}

// Wait blocks until the next visit may be dispatched or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// TargetRate reports the pacing target in visits per second; 0 means
// unlimited.
func (p *Pacer) TargetRate() float64 {
	if p == nil {
		return 0
	}
	return p.rps
}
