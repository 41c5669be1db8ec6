package breaker

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config configures a CircuitBreaker. All numeric fields are clamped to
// their valid range at construction; invalid inputs never fail construction.
type Config struct {
	// Name identifies the breaker in error messages and logs. Optional.
	Name string

	// FailureThresholdPct is the failure-rate percentage, over the window,
	// that trips the breaker. Clamped to [1,100].
	FailureThresholdPct float64

	// MinimumRequests is the number of requests that must accumulate in the
	// window before the failure rate is even evaluated. Clamped to >= 1.
	MinimumRequests int64

	// RollingWindow is the span over which the failure rate is computed.
	// Clamped to >= 1000ms.
	RollingWindow time.Duration

	// ResetTimeout is how long the breaker stays open before probing.
	// Clamped to >= 100ms.
	ResetTimeout time.Duration

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close. Clamped to >= 1.
	SuccessThreshold int64

	// HalfOpenMaxRequests bounds concurrent half-open probes. Clamped to >= 1.
	HalfOpenMaxRequests int64

	// BucketCount is the number of ring buckets. Clamped to [2,60].
	BucketCount int

	// OnOpen, OnClose, OnHalfOpen are invoked on their respective
	// transitions. May be nil. A panicking callback propagates unrecovered;
	// unlike pkg/retry's observer callbacks, breaker transition callbacks
	// carry no in-flight error to replace.
	OnOpen     func()
	OnClose    func()
	OnHalfOpen func()

	// Logger receives one informational line per state transition. Never
	// gates control flow. A nil Logger disables logging.
	Logger *logrus.Logger
}

// DefaultConfig returns conservative defaults: trip at 50% failures over a
// minute with at least 10 requests, reset after 30s, and require 3
// consecutive half-open successes to close.
func DefaultConfig() Config {
	return Config{
		FailureThresholdPct: 50,
		MinimumRequests:     10,
		RollingWindow:       60000 * time.Millisecond,
		ResetTimeout:        30000 * time.Millisecond,
		SuccessThreshold:    3,
		HalfOpenMaxRequests: 1,
		BucketCount:         10,
	}
}

// normalized returns a copy of c with every field clamped into its valid
// range, and the derived bucket duration.
func (c Config) normalized() (Config, time.Duration) {
	out := c

	if out.FailureThresholdPct < 1 {
		out.FailureThresholdPct = 1
	} else if out.FailureThresholdPct > 100 {
		out.FailureThresholdPct = 100
	}
	if out.MinimumRequests < 1 {
		out.MinimumRequests = 1
	}
	if out.RollingWindow < 1000*time.Millisecond {
		out.RollingWindow = 1000 * time.Millisecond
	}
	if out.ResetTimeout < 100*time.Millisecond {
		out.ResetTimeout = 100 * time.Millisecond
	}
	if out.SuccessThreshold < 1 {
		out.SuccessThreshold = 1
	}
	if out.HalfOpenMaxRequests < 1 {
		out.HalfOpenMaxRequests = 1
	}
	if out.BucketCount < 2 {
		out.BucketCount = 2
	} else if out.BucketCount > 60 {
		out.BucketCount = 60
	}

	bucketDuration := out.RollingWindow / time.Duration(out.BucketCount)
	if bucketDuration <= 0 {
		bucketDuration = time.Millisecond
	}
	return out, bucketDuration
}
