// Package resilience composes the retry orchestrator, circuit breaker, rate
// limiter, and bulkhead into a single Execute call, admitting requests in
// order: rate limit, then bulkhead, then circuit breaker, then retry.
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/valianx/resilient-http/pkg/breaker"
	"github.com/valianx/resilient-http/pkg/retry"
)

// Config configures a Manager. Each sub-config is passed to its component
// unchanged: a zero Retry runs the operation once with no delay (see
// retry.Config), breaker.New clamps a zero Breaker to each field's minimum,
// and a zero RateLimit or Bulkhead disables that gate.
type Config struct {
	Retry       retry.Config
	Breaker     breaker.Config
	RateLimit   RateLimitConfig
	Bulkhead    BulkheadConfig
	// OperationTimeout bounds the whole protected operation (all retry
	// attempts together), independent of retry.Config.PerAttemptTimeout.
	// Zero means no outer timeout.
	OperationTimeout time.Duration
	Logger           *logrus.Logger
}

// RejectionError wraps a rejection from one of the outer gates (rate
// limiter or bulkhead); it is distinct from breaker.OpenError and from any
// operation error since those gates run before the breaker ever sees the
// call.
type RejectionError struct {
	Gate  string
	Cause error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("resilience: %s rejected the request: %v", e.Gate, e.Cause)
}

func (e *RejectionError) Unwrap() error { return e.Cause }

// Manager composes rate limiting, bulkhead isolation, a circuit breaker, and
// retry around a caller's operation.
type Manager struct {
	cfg       Config
	breaker   *breaker.CircuitBreaker
	rateLimit *RateLimiter
	bulkhead  *Bulkhead
}

// NewManager constructs a Manager from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:       cfg,
		breaker:   breaker.New(cfg.Breaker),
		rateLimit: NewRateLimiter(cfg.RateLimit),
		bulkhead:  NewBulkhead(cfg.Bulkhead),
	}
}

// Execute runs op through rate limiting, bulkhead admission, the circuit
// breaker, and retry, in that order. A rejection from rate limiting or the
// bulkhead short-circuits before the breaker or retry ever run, and never
// counts against the breaker's failure window.
func (m *Manager) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	correlationID := uuid.NewString()

	if m.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.OperationTimeout)
		defer cancel()
	}

	if !m.rateLimit.Allow() {
		m.logReject(correlationID, "rate_limit")
		return &RejectionError{Gate: "rate_limit", Cause: errRateLimited}
	}

	release, err := m.bulkhead.Acquire(ctx)
	if err != nil {
		m.logReject(correlationID, "bulkhead")
		return &RejectionError{Gate: "bulkhead", Cause: err}
	}
	defer release()

	return m.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.ExecuteContext(ctx, op, m.cfg.Retry)
	})
}

// Breaker exposes the underlying circuit breaker for inspection
// (GetState, GetMetrics, ForceState, ...).
func (m *Manager) Breaker() *breaker.CircuitBreaker { return m.breaker }

func (m *Manager) logReject(correlationID, gate string) {
	if m.cfg.Logger == nil {
		return
	}
	m.cfg.Logger.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"gate":           gate,
	}).Debug("resilience: request rejected before reaching the breaker")
}
