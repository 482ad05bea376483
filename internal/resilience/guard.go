package resilience

import (
	"context"
	"time"

	"github.com/sells-group/docrouter/internal/config"
)

// Guard combines retries with a per-service circuit breaker. Each call is
// admitted by the breaker once; retries happen inside that admission, so a
// breaker counts one failure per exhausted call rather than per attempt.
type Guard struct {
	retry    RetryConfig
	breakers *Breakers
}

// NewGuard creates a Guard. Breakers only count transient failures, so a
// rejected request never opens the circuit.
func NewGuard(retry RetryConfig, breaker BreakerConfig) *Guard {
	if breaker.ShouldTrip == nil {
		breaker.ShouldTrip = IsTransient
	}
	return &Guard{retry: retry, breakers: NewBreakers(breaker)}
}

// FromConfig builds a Guard from the resilience config section. Zero values
// keep the defaults.
func FromConfig(c config.ResilienceConfig) *Guard {
	retry := DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		retry.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		retry.InitialBackoff = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		retry.MaxBackoff = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	if c.Multiplier > 0 {
		retry.Multiplier = c.Multiplier
	}
	if c.JitterFraction >= 0 {
		retry.JitterFraction = c.JitterFraction
	}

	var breaker BreakerConfig
	breaker.FailureThreshold = c.FailureThreshold
	breaker.ResetTimeout = time.Duration(c.ResetTimeoutSecs) * time.Second

	return NewGuard(retry, breaker)
}

// Breakers exposes the per-service breakers, e.g. for health reporting.
func (g *Guard) Breakers() *Breakers {
	return g.breakers
}

// Call runs fn for service through the breaker and the retry policy.
func Call[T any](ctx context.Context, g *Guard, service, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	cfg := g.retry
	cfg.OnRetry = RetryLogger(service, operation)
	return ExecuteVal(ctx, g.breakers.Get(service), func(ctx context.Context) (T, error) {
		return DoVal(ctx, cfg, fn)
	})
}
