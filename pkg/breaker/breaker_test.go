package breaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCircuitBreaker_OpensAfterFailureThreshold(t *testing.T) {
	cb := New(Config{FailureThresholdPct: 50, MinimumRequests: 4})

	boom := errors.New("boom")
	for i := 0; i < 4; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, Open, cb.GetState())
}

func TestCircuitBreaker_HalfOpenSaturation(t *testing.T) {
	cb := New(Config{
		FailureThresholdPct: 50,
		MinimumRequests:     2,
		HalfOpenMaxRequests: 1,
		ResetTimeout:        100 * time.Millisecond,
		SuccessThreshold:    2,
	})

	boom := errors.New("boom")
	_ = cb.Execute(context.Background(), func(context.Context) error { return boom })
	_ = cb.Execute(context.Background(), func(context.Context) error { return boom })
	require.Equal(t, Open, cb.GetState())

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, HalfOpen, cb.GetState())

	var wg sync.WaitGroup
	started := make(chan struct{})
	release := make(chan struct{})
	var firstErr, secondErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		firstErr = cb.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	secondErr = cb.Execute(context.Background(), func(context.Context) error { return nil })

	var satErr *HalfOpenSaturatedError
	assert.ErrorAs(t, secondErr, &satErr)

	close(release)
	wg.Wait()
	assert.NoError(t, firstErr)

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, Closed, cb.GetState())

	m := cb.GetMetrics()
	assert.Equal(t, int64(0), m.TotalRequests)
}

func TestCircuitBreaker_ForceStateFiresOnOpen(t *testing.T) {
	var opened int32
	cb := New(Config{OnOpen: func() { atomic.AddInt32(&opened, 1) }})

	cb.ForceState(Open)
	assert.Equal(t, Open, cb.GetState())
	assert.EqualValues(t, 1, atomic.LoadInt32(&opened))

	// forcing the same state again must not refire the callback.
	cb.ForceState(Open)
	assert.EqualValues(t, 1, atomic.LoadInt32(&opened))
}

func TestCircuitBreaker_ResetClearsEverything(t *testing.T) {
	cb := New(Config{FailureThresholdPct: 50, MinimumRequests: 1})
	_ = cb.Execute(context.Background(), func(context.Context) error { return errors.New("x") })
	require.Equal(t, Open, cb.GetState())

	cb.Reset()
	assert.Equal(t, Closed, cb.GetState())
	m := cb.GetMetrics()
	assert.Zero(t, m.TotalRequests)
	assert.True(t, m.LastFailureTime.IsZero())
}

func TestCircuitBreaker_RejectionsDoNotCountAsFailures(t *testing.T) {
	cb := New(Config{FailureThresholdPct: 50, MinimumRequests: 100})
	cb.ForceState(Open)

	for i := 0; i < 10; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return nil })
		var openErr *OpenError
		require.ErrorAs(t, err, &openErr)
	}

	cb.ForceState(Closed)
	m := cb.GetMetrics()
	assert.Zero(t, m.TotalRequests)
}

func TestCircuitBreaker_BoundedBucketMemory(t *testing.T) {
	cb := New(Config{BucketCount: 10, RollingWindow: 60000 * time.Millisecond, MinimumRequests: 1_000_000, FailureThresholdPct: 100})
	for i := 0; i < 1000; i++ {
		cb.RecordSuccess()
	}
	assert.Len(t, cb.buckets, 10)
}

func TestCircuitBreaker_InMemoryStoreDeepCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	st := BreakerState{
		State:   Open,
		Buckets: []Bucket{{SuccessCount: 1}},
	}
	require.NoError(t, store.SetState(ctx, "svc", st))

	st.Buckets[0].SuccessCount = 999
	got, err := store.GetState(ctx, "svc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 1, got.Buckets[0].SuccessCount)

	got.Buckets[0].SuccessCount = 42
	got2, err := store.GetState(ctx, "svc")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got2.Buckets[0].SuccessCount)
}

func TestInMemoryStore_GetMissingReturnsNil(t *testing.T) {
	store := NewInMemoryStore()
	got, err := store.GetState(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEncodeDecodeState_RoundTrip(t *testing.T) {
	st := BreakerState{
		State:             HalfOpen,
		Buckets:           []Bucket{{SuccessCount: 2, FailureCount: 1}},
		HalfOpenSuccesses: 1,
	}
	data, err := EncodeState(st)
	require.NoError(t, err)

	decoded, err := DecodeState(data)
	require.NoError(t, err)
	assert.Equal(t, st.State, decoded.State)
	assert.Equal(t, st.Buckets, decoded.Buckets)
	assert.Equal(t, st.HalfOpenSuccesses, decoded.HalfOpenSuccesses)
}

func TestRegistry_GetOrCreateAndBound(t *testing.T) {
	r, err := NewRegistry(DefaultConfig(), 2)
	require.NoError(t, err)

	a := r.Get("svc-a")
	b := r.Get("svc-b")
	assert.Same(t, a, r.Get("svc-a"))

	r.Get("svc-c") // evicts the LRU entry
	assert.LessOrEqual(t, r.Len(), 2)
	_ = b
}

func TestCircuitBreaker_OperationPanicIsRecordedAsFailure(t *testing.T) {
	cb := New(Config{FailureThresholdPct: 50, MinimumRequests: 1})
	err := cb.Execute(context.Background(), func(context.Context) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Equal(t, Open, cb.GetState())
}
