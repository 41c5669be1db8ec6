// Package breaker implements a bucketed sliding-window circuit breaker:
// closed/open/half-open state machine, O(bucketCount) memory and metrics
// time regardless of request rate, and a pluggable Store for persisting
// BreakerState across process restarts.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CircuitBreaker protects a single logical dependency. The zero value is
// not usable; construct with New.
type CircuitBreaker struct {
	cfg            Config
	bucketDuration time.Duration

	mu      sync.Mutex
	state   State
	buckets []Bucket

	lastFailureTime time.Time
	lastSuccessTime time.Time

	halfOpenSuccesses      int64
	halfOpenActiveRequests int64

	inTransition bool // re-entrancy guard, see fireTransitionCallbackLocked

	Logger *logrus.Logger
}

// New constructs a CircuitBreaker in the closed state.
func New(cfg Config) *CircuitBreaker {
	normalized, bucketDuration := cfg.normalized()
	return &CircuitBreaker{
		cfg:            normalized,
		bucketDuration: bucketDuration,
		state:          Closed,
		buckets:        make([]Bucket, normalized.BucketCount),
		Logger:         normalized.Logger,
	}
}

// Execute admits or rejects fn by current state, reserving a half-open
// probe slot before invoking fn when applicable, and always records the
// outcome and releases any reserved slot before returning.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	release, err := cb.admit()
	if err != nil {
		return err
	}
	if release != nil {
		defer release()
	}

	opErr := runRecovered(ctx, fn)
	cb.record(opErr == nil)
	return opErr
}

// admit performs the admission check for the current state and, when
// entering half-open, reserves a probe slot. It returns a release function
// to call unconditionally once the probe completes (nil in closed/open).
func (cb *CircuitBreaker) admit() (release func(), err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.evaluateLazyTransitionLocked()

	switch cb.state {
	case Closed:
		return nil, nil
	case Open:
		return nil, &OpenError{Name: cb.cfg.Name}
	case HalfOpen:
		if cb.halfOpenActiveRequests >= cb.cfg.HalfOpenMaxRequests {
			return nil, &HalfOpenSaturatedError{Name: cb.cfg.Name}
		}
		cb.halfOpenActiveRequests++
		var once sync.Once
		return func() {
			once.Do(func() {
				cb.mu.Lock()
				if cb.halfOpenActiveRequests > 0 {
					cb.halfOpenActiveRequests--
				}
				cb.mu.Unlock()
			})
		}, nil
	default:
		return nil, nil
	}
}

// RecordSuccess records a successful outcome without an admission check,
// for callers integrating the breaker manually around their own call site.
func (cb *CircuitBreaker) RecordSuccess() { cb.record(true) }

// RecordFailure records a failed outcome without an admission check.
func (cb *CircuitBreaker) RecordFailure() { cb.record(false) }

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.recordIntoBucketLocked(now, success)

	if success {
		cb.lastSuccessTime = now
	} else {
		cb.lastFailureTime = now
	}

	switch cb.state {
	case HalfOpen:
		if success {
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses >= cb.cfg.SuccessThreshold {
				cb.transitionToLocked(Closed)
			}
		} else {
			cb.transitionToLocked(Open)
		}
	case Closed:
		if !success {
			total, failed := cb.windowCountsLocked(now)
			if total >= cb.cfg.MinimumRequests {
				failureRate := float64(failed) / float64(total) * 100
				if failureRate >= cb.cfg.FailureThresholdPct {
					cb.transitionToLocked(Open)
				}
			}
		}
	}
}

// recordIntoBucketLocked increments the bucket for now, clearing it first if
// it has rolled over to a new window.
func (cb *CircuitBreaker) recordIntoBucketLocked(now time.Time, success bool) {
	idx := cb.bucketIndexLocked(now)
	b := &cb.buckets[idx]

	if now.Sub(b.BucketStartTime) >= cb.bucketDuration {
		b.SuccessCount = 0
		b.FailureCount = 0
		b.BucketStartTime = now
	}
	if success {
		b.SuccessCount++
	} else {
		b.FailureCount++
	}
}

func (cb *CircuitBreaker) bucketIndexLocked(now time.Time) int {
	slot := now.UnixMilli() / cb.bucketDuration.Milliseconds()
	return int(slot % int64(len(cb.buckets)))
}

// windowCountsLocked sums buckets whose BucketStartTime falls within the
// live rolling window ending at now.
func (cb *CircuitBreaker) windowCountsLocked(now time.Time) (total, failed int64) {
	cutoff := now.Add(-cb.cfg.RollingWindow)
	for _, b := range cb.buckets {
		if b.BucketStartTime.After(cutoff) {
			total += b.SuccessCount + b.FailureCount
			failed += b.FailureCount
		}
	}
	return total, failed
}

// evaluateLazyTransitionLocked checks open -> half-open readiness. It is
// only evaluated lazily, from admit, GetState and GetMetrics, rather than on
// a timer.
func (cb *CircuitBreaker) evaluateLazyTransitionLocked() {
	if cb.state != Open {
		return
	}
	if cb.lastFailureTime.IsZero() {
		return
	}
	if time.Since(cb.lastFailureTime) >= cb.cfg.ResetTimeout {
		cb.transitionToLocked(HalfOpen)
	}
}

// transitionToLocked performs the state change, normalizes the counters for
// the new state, and fires the matching observer callback exactly once,
// guarded against re-entrancy from within the callback.
func (cb *CircuitBreaker) transitionToLocked(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.logTransition(prev, next)

	switch next {
	case Closed:
		cb.resetRingLocked()
		cb.halfOpenSuccesses = 0
		cb.halfOpenActiveRequests = 0
	case Open:
		cb.lastFailureTime = time.Now()
	case HalfOpen:
		cb.halfOpenSuccesses = 0
		cb.halfOpenActiveRequests = 0
	}

	cb.fireTransitionCallbackLocked(next)
}

func (cb *CircuitBreaker) fireTransitionCallbackLocked(next State) {
	if cb.inTransition {
		return
	}
	cb.inTransition = true
	defer func() { cb.inTransition = false }()

	var cb2 func()
	switch next {
	case Closed:
		cb2 = cb.cfg.OnClose
	case Open:
		cb2 = cb.cfg.OnOpen
	case HalfOpen:
		cb2 = cb.cfg.OnHalfOpen
	}
	if cb2 == nil {
		return
	}

	cb.mu.Unlock()
	defer cb.mu.Lock()
	cb2()
}

func (cb *CircuitBreaker) logTransition(prev, next State) {
	if cb.Logger == nil {
		return
	}
	cb.Logger.WithFields(logrus.Fields{
		"circuit": cb.cfg.Name,
		"from":    prev,
		"to":      next,
	}).Info("circuit breaker state transition")
}

func (cb *CircuitBreaker) resetRingLocked() {
	for i := range cb.buckets {
		cb.buckets[i] = Bucket{}
	}
}

// GetState returns the current state after evaluating deferred transitions.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.evaluateLazyTransitionLocked()
	return cb.state
}

// GetMetrics returns a snapshot computed from live buckets.
func (cb *CircuitBreaker) GetMetrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.evaluateLazyTransitionLocked()
	now := time.Now()
	total, failed := cb.windowCountsLocked(now)

	var rate float64
	if total > 0 {
		rate = float64(failed) / float64(total) * 100
	}

	return Metrics{
		State:              cb.state,
		TotalRequests:      total,
		FailedRequests:     failed,
		SuccessfulRequests: total - failed,
		FailureRate:        rate,
		LastFailureTime:    cb.lastFailureTime,
		LastSuccessTime:    cb.lastSuccessTime,
	}
}

// ForceState sets the state directly and normalizes counters for it, firing
// the matching observer callback — including OnOpen, when forced into the
// open state.
func (cb *CircuitBreaker) ForceState(s State) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == s {
		return
	}
	cb.transitionToLocked(s)
}

// Reset returns the breaker to closed, with a cleared ring, null
// timestamps, and zero counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = Closed
	cb.resetRingLocked()
	cb.lastFailureTime = time.Time{}
	cb.lastSuccessTime = time.Time{}
	cb.halfOpenSuccesses = 0
	cb.halfOpenActiveRequests = 0
}

// Snapshot exports the current BreakerState for persistence via a Store.
// The returned value is a deep copy safe for the caller to retain.
func (cb *CircuitBreaker) Snapshot() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return BreakerState{
		State:                  cb.state,
		Buckets:                append([]Bucket(nil), cb.buckets...),
		LastFailureTime:        cb.lastFailureTime,
		LastSuccessTime:        cb.lastSuccessTime,
		HalfOpenSuccesses:      cb.halfOpenSuccesses,
		HalfOpenActiveRequests: cb.halfOpenActiveRequests,
	}
}

// Restore replaces the breaker's live state with a deep copy of s, resizing
// the bucket ring to the breaker's own BucketCount if s came from a
// differently-configured breaker.
func (cb *CircuitBreaker) Restore(s BreakerState) {
	cloned := s.clone()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = cloned.State
	cb.buckets = make([]Bucket, len(cb.buckets))
	copy(cb.buckets, cloned.Buckets)
	cb.lastFailureTime = cloned.LastFailureTime
	cb.lastSuccessTime = cloned.LastSuccessTime
	cb.halfOpenSuccesses = cloned.HalfOpenSuccesses
	cb.halfOpenActiveRequests = cloned.HalfOpenActiveRequests
}

// runRecovered executes fn, converting a panic into an error instead of
// crashing the caller's goroutine.
func runRecovered(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{Value: r}
		}
	}()
	return fn(ctx)
}

type panicError struct{ Value any }

func (e *panicError) Error() string {
	return "circuit breaker operation panicked"
}
