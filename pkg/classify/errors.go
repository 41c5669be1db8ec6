// Package classify converts heterogeneous error shapes into a single
// StandardizedError carrying a coarse Classification and a retryability
// verdict, and exposes the predicate that pkg/retry defaults to.
package classify

import (
	"fmt"
	"net/http"
)

// Classification is a coarse, semantic tag on an error that drives default
// retry policy.
type Classification string

const (
	ClassNetwork        Classification = "network"
	ClassTimeout        Classification = "timeout"
	ClassServer         Classification = "server"
	ClassRateLimit      Classification = "rateLimit"
	ClassClient         Classification = "client"
	ClassAuthentication Classification = "authentication"
	ClassNotFound       Classification = "notFound"
	ClassValidation     Classification = "validation"
	ClassCancelled      Classification = "cancelled"
	ClassUnknown        Classification = "unknown"
)

// ClientType is an open-world tag identifying which extraction strategy
// produced a StandardizedError. Built-in values are defined alongside the
// extractors that set them (extractors.go); custom extractors may use any
// string.
type ClientType string

// StandardizedError is the canonical record produced by Extract, independent
// of the shape of the error that produced it.
type StandardizedError struct {
	OriginalError error
	Message       string
	StatusCode    int // 0 means "not applicable"
	Method        string
	URL           string
	Headers       http.Header
	Body          string
	ErrorCode     string
	Classification Classification
	IsRetryable   bool
	ClientType    ClientType
}

// Error implements the error interface so a StandardizedError can itself be
// returned/propagated like any other error.
func (e *StandardizedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status=%d, classification=%s)", e.Message, e.StatusCode, e.Classification)
	}
	return fmt.Sprintf("%s (classification=%s)", e.Message, e.Classification)
}

// Unwrap exposes the original error for errors.Is/errors.As chains.
func (e *StandardizedError) Unwrap() error { return e.OriginalError }
