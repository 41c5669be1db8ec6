package breaker

import "fmt"

// OpenError is raised by Execute's admission check when the breaker is in
// the open state. Distinguishable by type from
// HalfOpenSaturatedError.
type OpenError struct {
	Name string
}

func (e *OpenError) Error() string {
	if e.Name == "" {
		return "circuit breaker is open"
	}
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

// HalfOpenSaturatedError is raised when a half-open breaker already has
// Config.HalfOpenMaxRequests probes in flight.
type HalfOpenSaturatedError struct {
	Name string
}

func (e *HalfOpenSaturatedError) Error() string {
	if e.Name == "" {
		return "circuit breaker is half-open and saturated with probes"
	}
	return fmt.Sprintf("circuit breaker %q is half-open and saturated with probes", e.Name)
}
