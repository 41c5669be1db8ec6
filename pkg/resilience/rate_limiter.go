package resilience

import (
	"errors"

	"golang.org/x/time/rate"
)

var errRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig configures RateLimiter. A zero value disables limiting
// entirely (every call is allowed).
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. <= 0 disables the limiter.
	RequestsPerSecond float64
	// BurstSize is the maximum burst above the sustained rate. <= 0 uses 1.
	BurstSize int
}

// RateLimiter wraps golang.org/x/time/rate.Limiter, replacing a hand-rolled
// token bucket with the ecosystem implementation.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter constructs a RateLimiter from cfg. A non-positive
// RequestsPerSecond disables limiting.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return &RateLimiter{}
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)}
}

// Allow reports whether a request may proceed right now. A disabled limiter
// always allows.
func (r *RateLimiter) Allow() bool {
	if r.limiter == nil {
		return true
	}
	return r.limiter.Allow()
}
