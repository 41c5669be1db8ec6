// Package retry implements the retry orchestrator: an attempt loop that
// executes a caller-supplied operation, computes jittered backoff delays
// between attempts, consults a retryability predicate, and honors
// cancellation via context.Context.
//
// Cancellation is carried entirely by context.Context: DoContext takes it
// from the context the caller passes in, and Do runs with
// context.Background().
package retry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/valianx/resilient-http/pkg/backoff"
	"github.com/valianx/resilient-http/pkg/classify"
)

// Config configures a retry loop. Zero-value fields are not replaced by
// DefaultConfig's values: a MaxAttempts below 1 runs the operation once, a
// nil ShouldRetry uses classify.DefaultRetryPredicate, an empty Jitter is
// treated as full jitter, and a zero Backoff yields zero delays.
type Config struct {
	// MaxAttempts is the maximum number of times the operation is invoked. >= 1.
	MaxAttempts int

	// Backoff computes the base per-attempt delay, in milliseconds.
	Backoff backoff.Config

	// Jitter selects how the base delay is randomized.
	Jitter backoff.JitterStrategy

	// PerAttemptTimeout bounds a single attempt, if > 0. Zero means no timeout.
	PerAttemptTimeout time.Duration

	// ShouldRetry decides, given the error from an attempt and its 0-based
	// index, whether another attempt should be made. If nil,
	// classify.DefaultRetryPredicate is used. A panicking predicate is a
	// programmer error and propagates unchanged (not recovered).
	ShouldRetry func(err error, attempt int) bool

	// OnRetry is invoked just before sleeping between attempts, with the
	// error that triggered the retry, the 1-based attempt count that just
	// failed, and the computed delay. May be nil.
	OnRetry func(err error, attempt int, delay time.Duration)

	// OnFailure is invoked once, when the loop gives up: either the
	// predicate refused to retry or attempts are exhausted. attempt is the
	// 1-based count of attempts made. May be nil.
	OnFailure func(err error, attempt int)

	// Logger receives informational log lines. Never gates control flow.
	// A nil Logger disables logging.
	Logger *logrus.Logger

	// JitterSource overrides the random source used for jitter. Nil uses a
	// shared package-default source.
	JitterSource *backoff.Source
}

// DefaultConfig returns sane defaults: three attempts, exponential backoff
// from 1s to 30s, and full jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Backoff: backoff.Config{
			InitialDelayMS: 1000,
			MaxDelayMS:     30000,
			Multiplier:     2,
			Strategy:       backoff.Exponential,
		},
		Jitter:      backoff.JitterFull,
		ShouldRetry: classify.DefaultRetryPredicate,
	}
}

func (c Config) shouldRetry() func(error, int) bool {
	if c.ShouldRetry != nil {
		return c.ShouldRetry
	}
	return classify.DefaultRetryPredicate
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts < 1 {
		return 1
	}
	return c.MaxAttempts
}

// Operation is a caller-supplied unit of work. It returns a result and an
// error; retry loops on the error per Config.
type Operation[T any] func(ctx context.Context) (T, error)

// Do runs op with context.Background() as the cancellation source.
func Do[T any](op Operation[T], cfg Config) (T, error) {
	return DoContext(context.Background(), op, cfg)
}

// DoContext runs op up to cfg.MaxAttempts times, returning the first
// success. If every attempt fails or the predicate refuses a retry, it
// returns the last captured error. If ctx is done before an attempt starts
// or during the inter-attempt sleep, it returns a *CancelledError; an
// attempt that fails because ctx ended is handled like any other failed
// attempt.
func DoContext[T any](ctx context.Context, op Operation[T], cfg Config) (T, error) {
	var zero T
	maxAttempts := cfg.maxAttempts()
	shouldRetry := cfg.shouldRetry()
	prevDelay := cfg.Backoff.InitialDelayMS

	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, &CancelledError{Cause: err}
		}

		result, err := runAttempt(ctx, op, cfg.PerAttemptTimeout)
		if err == nil {
			return result, nil
		}
		lastErr = err
		logAttempt(cfg.Logger, attempt, err)

		if !shouldRetry(err, attempt) || attempt == maxAttempts-1 {
			lastErr = invokeOnFailure(cfg.OnFailure, lastErr, attempt+1)
			return zero, lastErr
		}

		delay := backoff.ApplyJitter(
			backoff.Delay(attempt, cfg.Backoff),
			cfg.Jitter,
			prevDelay,
			cfg.Backoff,
			cfg.JitterSource,
		)
		prevDelay = delay

		lastErr = invokeOnRetry(cfg.OnRetry, lastErr, attempt+1, time.Duration(delay)*time.Millisecond)

		if cerr := sleep(ctx, time.Duration(delay)*time.Millisecond); cerr != nil {
			return zero, cerr
		}
	}

	return zero, lastErr
}

// Execute is the side-effect-only convenience form: op returns only an
// error.
func Execute(op func(ctx context.Context) error, cfg Config) error {
	_, err := DoContext(context.Background(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, cfg)
	return err
}

// ExecuteContext is Execute with an explicit context.
func ExecuteContext(ctx context.Context, op func(ctx context.Context) error, cfg Config) error {
	_, err := DoContext(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, cfg)
	return err
}

// WithRetry wraps op so that every call runs through a fresh retry loop
// with cfg.
func WithRetry[T any](op Operation[T], cfg Config) Operation[T] {
	return func(ctx context.Context) (T, error) {
		return DoContext(ctx, op, cfg)
	}
}

// runAttempt executes op once, optionally racing it against a per-attempt
// timeout. If the timeout elapses first, it returns a *TimeoutError without
// waiting for op to finish; op's own goroutine continues running to
// completion in the background if it ignores ctx cancellation.
func runAttempt[T any](ctx context.Context, op Operation[T], timeout time.Duration) (result T, err error) {
	if timeout <= 0 {
		return runRecovered(ctx, op)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result T
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		r, e := runRecovered(attemptCtx, op)
		ch <- outcome{r, e}
	}()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-attemptCtx.Done():
		var zero T
		return zero, &TimeoutError{Cause: attemptCtx.Err()}
	}
}

// runRecovered executes op, converting a panic into an error rather than
// crashing the caller's goroutine. A panicking *operation* is just another
// failure, unlike a panicking *callback* (see invokeOnRetry/invokeOnFailure),
// which replaces the in-flight error instead.
func runRecovered[T any](ctx context.Context, op Operation[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = &panicError{Value: r}
		}
	}()
	return op(ctx)
}

// invokeOnRetry calls cb if non-nil, recovering any panic and returning it
// as the new in-flight error: a panicking callback is not swallowed, it
// replaces the error the caller ends up observing.
func invokeOnRetry(cb func(error, int, time.Duration), err error, attempt int, delay time.Duration) (result error) {
	result = err
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			result = &panicError{Value: r}
		}
	}()
	cb(err, attempt, delay)
	return
}

// invokeOnFailure calls cb if non-nil, recovering any panic and returning it
// as the new in-flight error, same as invokeOnRetry.
func invokeOnFailure(cb func(error, int), err error, attempt int) (result error) {
	result = err
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			result = &panicError{Value: r}
		}
	}()
	cb(err, attempt)
	return
}

// sleep waits for d or returns a *CancelledError if ctx is done first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return &CancelledError{Cause: err}
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return &CancelledError{Cause: ctx.Err()}
	}
}

func logAttempt(logger *logrus.Logger, attempt int, err error) {
	if logger == nil {
		return
	}
	logger.WithFields(logrus.Fields{
		"attempt": attempt + 1,
		"error":   err.Error(),
	}).Debug("retry: attempt failed")
}
