package resilience

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

var errBulkheadFull = errors.New("bulkhead queue full")

// BulkheadConfig configures Bulkhead. A zero or negative MaxConcurrent
// disables isolation entirely (every call is admitted).
type BulkheadConfig struct {
	MaxConcurrent int64
	// QueueTimeout bounds how long Acquire waits for a free slot once
	// MaxConcurrent is saturated. Zero means fail fast (no queueing).
	QueueTimeout time.Duration
}

// Bulkhead bounds concurrent in-flight operations using a weighted
// semaphore, replacing a hand-rolled channel-based semaphore with the
// ecosystem implementation.
type Bulkhead struct {
	sem          *semaphore.Weighted
	queueTimeout time.Duration
}

// NewBulkhead constructs a Bulkhead from cfg.
func NewBulkhead(cfg BulkheadConfig) *Bulkhead {
	if cfg.MaxConcurrent <= 0 {
		return &Bulkhead{}
	}
	return &Bulkhead{sem: semaphore.NewWeighted(cfg.MaxConcurrent), queueTimeout: cfg.QueueTimeout}
}

// Acquire reserves one slot. With no QueueTimeout configured it fails fast
// (TryAcquire) the instant the bulkhead is saturated; with a QueueTimeout it
// waits up to that long for a slot to free before giving up. On success it
// returns a release function that must be called exactly once. A disabled
// bulkhead always succeeds with a no-op release.
func (b *Bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	if b.sem == nil {
		return func() {}, nil
	}

	if b.queueTimeout <= 0 {
		if !b.sem.TryAcquire(1) {
			return nil, errBulkheadFull
		}
		return func() { b.sem.Release(1) }, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.queueTimeout)
	defer cancel()
	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		return nil, errBulkheadFull
	}
	return func() { b.sem.Release(1) }, nil
}
