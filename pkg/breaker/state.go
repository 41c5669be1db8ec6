package breaker

import "time"

// State is one of the three circuit breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "halfOpen"
)

// Bucket is one fixed time slice of the rolling window.
type Bucket struct {
	SuccessCount    int64     `msgpack:"successCount"`
	FailureCount    int64     `msgpack:"failureCount"`
	BucketStartTime time.Time `msgpack:"bucketStartTime"`
}

// BreakerState is the full persisted record for one circuit.
type BreakerState struct {
	State                  State     `msgpack:"state"`
	Buckets                []Bucket  `msgpack:"buckets"`
	LastFailureTime        time.Time `msgpack:"lastFailureTime"`
	LastSuccessTime        time.Time `msgpack:"lastSuccessTime"`
	HalfOpenSuccesses      int64     `msgpack:"halfOpenSuccesses"`
	HalfOpenActiveRequests int64     `msgpack:"halfOpenActiveRequests"`
}

// clone returns a deep copy of s; the Buckets slice header is never shared
// with the original.
func (s BreakerState) clone() BreakerState {
	out := s
	out.Buckets = make([]Bucket, len(s.Buckets))
	copy(out.Buckets, s.Buckets)
	return out
}

// Metrics is the snapshot returned by CircuitBreaker.GetMetrics.
type Metrics struct {
	State              State
	TotalRequests      int64
	FailedRequests     int64
	SuccessfulRequests int64
	FailureRate        float64 // 0..100
	LastFailureTime    time.Time
	LastSuccessTime    time.Time
}
