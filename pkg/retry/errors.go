package retry

import (
	"errors"
	"fmt"
)

// ErrCancelled is the identity checked via errors.Is against any
// CancelledError returned by this package, regardless of what underlying
// context error caused it.
var ErrCancelled = errors.New("retry: cancelled")

// CancelledError is returned when a retry loop finds its context done
// before an attempt starts or during an inter-attempt sleep. It is named
// distinctly from the underlying context error (Cause) but answers
// errors.Is(err, ErrCancelled) so callers can recognize it without caring
// which context method produced it.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("retry: cancelled: %v", e.Cause)
	}
	return "retry: cancelled"
}

func (e *CancelledError) Unwrap() error { return e.Cause }

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// TimeoutError is returned when the context of a timed attempt
// (Config.PerAttemptTimeout > 0) ends before the operation completes. Cause
// is that context's error: context.DeadlineExceeded when the timeout
// elapses, or the caller's context error (context.Canceled on cancellation)
// when the caller's context ends first. For a timeout,
// errors.Is(err, context.DeadlineExceeded) recognizes it without pkg/retry
// needing to know about pkg/classify, and vice versa.
type TimeoutError struct {
	Cause error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("retry: attempt timed out: %v", e.Cause)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// panicError wraps a recovered panic value from a caller-supplied callback
// (OnRetry, OnFailure) so it can replace the in-flight error: a panicking
// callback is not swallowed, it *becomes* the error the caller observes.
type panicError struct {
	Value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("retry: callback panicked: %v", e.Value)
}
