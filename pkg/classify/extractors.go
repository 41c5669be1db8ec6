package classify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// Extractor converts one specific error shape into a StandardizedError.
// CanHandle is always called before Extract for the same error; built-in
// extractors are stateless and safe to share.
type Extractor interface {
	Name() string
	CanHandle(err error) bool
	Extract(err error) *StandardizedError
}

// Built-in ClientType tags, one per recognized shape of Go's own HTTP error
// surface: a transport-level *url.Error, a raw syscall/net error, a
// completed-round-trip *ResponseError, and a generic fallback.
const (
	ClientURL      ClientType = "url"
	ClientSyscall  ClientType = "syscall"
	ClientResponse ClientType = "net/http"
	ClientGeneric  ClientType = "generic"
)

// ResponseError represents a completed HTTP round trip that the caller is
// treating as an error (typically a non-2xx status). Extract mines a
// message out of its body when one is present.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Err        error // optional wrapped cause, e.g. from http.Client.Do
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "http response error"
}

func (e *ResponseError) Unwrap() error { return e.Err }

// --- urlExtractor: *url.Error (request made, transport-level failure, no response) ---

type urlExtractor struct{}

func (urlExtractor) Name() string { return string(ClientURL) }

func (urlExtractor) CanHandle(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue)
}

func (urlExtractor) Extract(err error) *StandardizedError {
	var ue *url.Error
	errors.As(err, &ue)

	code := errorCodeFor(ue.Err)
	statusCode := synthesizeStatusCode(code)
	classification := ClassifyError(statusCode, code)

	se := &StandardizedError{
		OriginalError:  err,
		Message:        messageFor(ue),
		StatusCode:     statusCode,
		Method:         ue.Op,
		URL:            ue.URL,
		ErrorCode:      code,
		Classification: classification,
		ClientType:     ClientURL,
	}
	se.IsRetryable = IsRetryableError(se.Classification, se.StatusCode)
	return se
}

// --- syscallExtractor: net.Error / *net.OpError / syscall.Errno (no response) ---

type syscallExtractor struct{}

func (syscallExtractor) Name() string { return string(ClientSyscall) }

func (syscallExtractor) CanHandle(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (syscallExtractor) Extract(err error) *StandardizedError {
	code := errorCodeFor(err)
	statusCode := synthesizeStatusCode(code)
	classification := ClassifyError(statusCode, code)

	se := &StandardizedError{
		OriginalError:  err,
		Message:        err.Error(),
		StatusCode:     statusCode,
		ErrorCode:      code,
		Classification: classification,
		ClientType:     ClientSyscall,
	}
	se.IsRetryable = IsRetryableError(se.Classification, se.StatusCode)
	return se
}

// --- responseExtractor: *ResponseError (request made, response received) ---

type responseExtractor struct{}

func (responseExtractor) Name() string { return string(ClientResponse) }

func (responseExtractor) CanHandle(err error) bool {
	var re *ResponseError
	return errors.As(err, &re)
}

func (responseExtractor) Extract(err error) *StandardizedError {
	var re *ResponseError
	errors.As(err, &re)

	msg := mineBodyMessage(re.Body)
	if msg == "" {
		msg = re.Error()
	}

	classification := ClassifyError(re.StatusCode, "")
	se := &StandardizedError{
		OriginalError:  err,
		Message:        msg,
		StatusCode:     re.StatusCode,
		Method:         re.Method,
		URL:            re.URL,
		Headers:        re.Header,
		Body:           string(re.Body),
		Classification: classification,
		ClientType:     ClientResponse,
	}
	se.IsRetryable = IsRetryableError(se.Classification, se.StatusCode)
	return se
}

// --- genericExtractor: fallback for anything else, including context.Canceled ---
// (context.DeadlineExceeded satisfies net.Error, so syscallExtractor takes it.)

type genericExtractor struct{}

func (genericExtractor) Name() string { return string(ClientGeneric) }

func (genericExtractor) CanHandle(err error) bool { return err != nil }

func (genericExtractor) Extract(err error) *StandardizedError {
	code := errorCodeFor(err)
	statusCode := synthesizeStatusCode(code)
	classification := ClassifyError(statusCode, code)

	se := &StandardizedError{
		OriginalError:  err,
		Message:        err.Error(),
		StatusCode:     statusCode,
		ErrorCode:      code,
		Classification: classification,
		ClientType:     ClientGeneric,
	}
	se.IsRetryable = IsRetryableError(se.Classification, se.StatusCode)
	return se
}

// errorCodeFor inspects an error's shape and returns the fixed code string
// it matches, or "" if none match. It walks context errors and syscall/net
// errors to recognize the underlying condition regardless of how deeply it
// is wrapped.
func errorCodeFor(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "context.DeadlineExceeded"
	}
	if errors.Is(err, context.Canceled) {
		return "context.Canceled"
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ETIMEDOUT:
			return "ETIMEDOUT"
		case syscall.ECONNREFUSED:
			return "ECONNREFUSED"
		case syscall.ECONNRESET:
			return "ECONNRESET"
		case syscall.EPIPE:
			return "EPIPE"
		case syscall.ENETUNREACH:
			return "ENETUNREACH"
		case syscall.EHOSTUNREACH:
			return "EHOSTUNREACH"
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "ENOTFOUND"
	}

	return ""
}

// synthesizeStatusCode assigns a status code for errors where a request was
// made but no response was ever received: timeouts -> 408,
// refused/reset/dns/network -> 503, cancelled -> 499.
func synthesizeStatusCode(code string) int {
	switch code {
	case "ETIMEDOUT", "ECONNABORTED", "UND_ERR_CONNECT_TIMEOUT", "context.DeadlineExceeded":
		return 408
	case "ECONNRESET", "ECONNREFUSED", "ENETUNREACH", "EHOSTUNREACH", "EPIPE", "EAI_AGAIN", "ENOTFOUND", "ERR_NETWORK", "UND_ERR_SOCKET":
		return 503
	case "ERR_CANCELED", "ABORT_ERR", "context.Canceled":
		return 499
	}
	return 0
}

func messageFor(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// mineBodyMessage tries, in order, message/error/detail/msg/errorMessage at
// the top level of a JSON body, then error.message nested.
func mineBodyMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}

	for _, field := range []string{"message", "error", "detail", "msg", "errorMessage"} {
		if v, ok := doc[field]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}

	if nested, ok := doc["error"].(map[string]any); ok {
		if s, ok := nested["message"].(string); ok && s != "" {
			return s
		}
	}

	return ""
}
