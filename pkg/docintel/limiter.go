package docintel

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter paces requests to the service. It starts at the
// configured rate, speeds up 10% per accepted request up to 2x, and halves
// on every 429 down to a quarter of the initial rate.
type AdaptiveLimiter struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	current rate.Limit
	min     rate.Limit
	max     rate.Limit
}

// NewAdaptiveLimiter creates a limiter allowing perSecond requests with a
// burst of the same size (at least 1).
func NewAdaptiveLimiter(perSecond float64) *AdaptiveLimiter {
	r := rate.Limit(perSecond)
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(r, burst),
		current: r,
		min:     r / 4,
		max:     r * 2,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess nudges the rate up.
func (a *AdaptiveLimiter) OnSuccess() {
	a.set(func(cur rate.Limit) rate.Limit { return cur * 1.1 })
}

// OnThrottled halves the rate.
func (a *AdaptiveLimiter) OnThrottled() {
	r := a.set(func(cur rate.Limit) rate.Limit { return cur / 2 })
	zap.L().Warn("docintel: throttled, reducing request rate", zap.Float64("rate", float64(r)))
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) set(next func(rate.Limit) rate.Limit) rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := next(a.current)
	if r > a.max {
		r = a.max
	}
	if r < a.min {
		r = a.min
	}
	a.current = r
	a.limiter.SetLimit(r)
	return r
}
