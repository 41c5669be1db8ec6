package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valianx/resilient-http/pkg/backoff"
	"github.com/valianx/resilient-http/pkg/breaker"
	"github.com/valianx/resilient-http/pkg/retry"
)

func TestManager_ExecuteSucceeds(t *testing.T) {
	m := NewManager(Config{Retry: retry.Config{MaxAttempts: 1}})
	err := m.Execute(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestManager_RetriesThroughBreaker(t *testing.T) {
	calls := 0
	m := NewManager(Config{
		Retry: retry.Config{
			MaxAttempts: 3,
			Backoff:     backoff.Config{InitialDelayMS: 1, MaxDelayMS: 1, Strategy: backoff.Constant},
			Jitter:      backoff.JitterNone,
			ShouldRetry: func(error, int) bool { return true },
		},
	})

	err := m.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, breaker.Closed, m.Breaker().GetState())
}

func TestManager_RateLimitRejectsBeforeBreaker(t *testing.T) {
	m := NewManager(Config{RateLimit: RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}})

	err1 := m.Execute(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err1)

	err2 := m.Execute(context.Background(), func(context.Context) error { return nil })
	var rej *RejectionError
	require.ErrorAs(t, err2, &rej)
	assert.Equal(t, "rate_limit", rej.Gate)

	// The rejected call never reached the breaker, so its metrics are
	// unaffected.
	m2 := m.Breaker().GetMetrics()
	assert.Equal(t, int64(1), m2.TotalRequests)
}

func TestManager_BulkheadRejectsConcurrentOverflow(t *testing.T) {
	m := NewManager(Config{Bulkhead: BulkheadConfig{MaxConcurrent: 1}})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- m.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := m.Execute(context.Background(), func(context.Context) error { return nil })
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "bulkhead", rej.Gate)

	close(release)
	require.NoError(t, <-done)
}
