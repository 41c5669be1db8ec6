package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/valianx/resilient-http/pkg/backoff"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noJitterConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts: maxAttempts,
		Backoff: backoff.Config{
			InitialDelayMS: 1,
			MaxDelayMS:     1000,
			Multiplier:     2,
			Strategy:       backoff.Exponential,
		},
		Jitter:      backoff.JitterNone,
		ShouldRetry: func(error, int) bool { return true },
	}
}

func succeedOnAttempt(n int) (Operation[string], *int) {
	calls := 0
	return func(context.Context) (string, error) {
		calls++
		if calls < n {
			return "", errors.New("not yet")
		}
		return "success", nil
	}, &calls
}

func TestDo_SucceedOnAttempt3(t *testing.T) {
	op, calls := succeedOnAttempt(3)
	result, err := Do(op, noJitterConfig(5))

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 3, *calls)
}

func TestDo_AlwaysFailExhaustsAttemptsAndCallsOnFailureOnce(t *testing.T) {
	calls := 0
	var failureCalls int
	var failureAttempts int

	cfg := noJitterConfig(3)
	cfg.OnFailure = func(err error, attempt int) {
		failureCalls++
		failureAttempts = attempt
	}

	op := Operation[string](func(context.Context) (string, error) {
		calls++
		return "", errors.New("boom")
	})

	_, err := Do(op, cfg)

	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, failureCalls)
	assert.Equal(t, 3, failureAttempts)
}

func TestDoContext_AbortBeforeAnyAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	op := Operation[string](func(context.Context) (string, error) {
		calls++
		return "", nil
	})

	_, err := DoContext(ctx, op, noJitterConfig(3))

	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, 0, calls)
}

func TestDoContext_NonRetryablePredicateStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("fatal")

	cfg := noJitterConfig(5)
	cfg.ShouldRetry = func(err error, attempt int) bool { return false }

	op := Operation[string](func(context.Context) (string, error) {
		calls++
		return "", sentinel
	})

	_, err := Do(op, cfg)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDoContext_PerAttemptTimeout(t *testing.T) {
	cfg := noJitterConfig(2)
	cfg.PerAttemptTimeout = 10 * time.Millisecond

	op := Operation[string](func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := Do(op, cfg)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}

func TestDoContext_CancellationDuringSleep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	cfg := Config{
		MaxAttempts: 5,
		Backoff: backoff.Config{
			InitialDelayMS: 200,
			MaxDelayMS:     200,
			Multiplier:     1,
			Strategy:       backoff.Constant,
		},
		Jitter:      backoff.JitterNone,
		ShouldRetry: func(error, int) bool { return true },
	}

	op := Operation[string](func(context.Context) (string, error) {
		return "", errors.New("always fails")
	})

	_, err := DoContext(ctx, op, cfg)
	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
}

func TestDoContext_OperationPanicIsRecoveredAsFailure(t *testing.T) {
	cfg := noJitterConfig(2)
	op := Operation[string](func(context.Context) (string, error) {
		panic("kaboom")
	})

	_, err := Do(op, cfg)
	require.Error(t, err)
}

func TestDoContext_OnFailureCallbackPanicReplacesInFlightError(t *testing.T) {
	cfg := noJitterConfig(1)
	cfg.OnFailure = func(error, int) {
		panic("callback exploded")
	}

	op := Operation[string](func(context.Context) (string, error) {
		return "", errors.New("original error")
	})

	_, err := Do(op, cfg)
	require.Error(t, err)
	assert.NotEqual(t, "original error", err.Error())
}

// The default predicate (classify.DefaultRetryPredicate) classifies a plain
// error with no status code or error code as ClassUnknown, which is not in
// its retryable set, so DefaultConfig gives up after a single attempt. A
// caller that wants every failure retried regardless of classification must
// supply its own ShouldRetry, as the other tests in this file do.
func TestDoContext_DefaultPredicateDoesNotRetryUnclassifiedError(t *testing.T) {
	calls := 0
	cfg := DefaultConfig()
	cfg.Backoff.InitialDelayMS = 1
	cfg.Backoff.MaxDelayMS = 1

	op := Operation[string](func(context.Context) (string, error) {
		calls++
		return "", errors.New("boom")
	})

	_, err := Do(op, cfg)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_SideEffectOnly(t *testing.T) {
	calls := 0
	err := Execute(func(context.Context) error {
		calls++
		return nil
	}, noJitterConfig(3))

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_WrapsOperation(t *testing.T) {
	op, calls := succeedOnAttempt(2)
	wrapped := WithRetry(op, noJitterConfig(3))

	result, err := wrapped(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, *calls)
}
