package classify

// Fixed error-code sets, named after the POSIX/libuv errno symbols they
// originate from (ETIMEDOUT, ECONNRESET, ...). pkg/classify's own extractors
// populate ErrorCode with these same string names when they recognize the
// matching Go stdlib shape (see extractors.go), so the classification table
// is shared between those built-in extractors and any custom extractor that
// chooses to report the same names.
var timeoutCodes = map[string]bool{
	"ETIMEDOUT":                  true,
	"ECONNABORTED":               true,
	"UND_ERR_CONNECT_TIMEOUT":    true,
	"context.DeadlineExceeded":   true,
}

var networkCodes = map[string]bool{
	"ECONNRESET":    true,
	"ECONNREFUSED":  true,
	"ENETUNREACH":   true,
	"EHOSTUNREACH":  true,
	"EPIPE":         true,
	"EAI_AGAIN":     true,
	"ENOTFOUND":     true,
	"ERR_NETWORK":   true,
	"UND_ERR_SOCKET": true,
}

var cancelledCodes = map[string]bool{
	"ERR_CANCELED":             true,
	"ABORT_ERR":                true,
	"context.Canceled":         true,
}

// ClassifyError classifies an error given an optional HTTP status code
// (0 = absent) and an optional error code string ("" = absent). Error-code
// tests take precedence over the status code; if neither matches anything
// known, it returns ClassUnknown.
func ClassifyError(statusCode int, errorCode string) Classification {
	if errorCode != "" {
		if timeoutCodes[errorCode] {
			return ClassTimeout
		}
		if cancelledCodes[errorCode] {
			return ClassCancelled
		}
		if networkCodes[errorCode] {
			return ClassNetwork
		}
	}

	switch {
	case statusCode == 429:
		return ClassRateLimit
	case statusCode == 401 || statusCode == 403:
		return ClassAuthentication
	case statusCode == 404:
		return ClassNotFound
	case statusCode == 400 || statusCode == 422:
		return ClassValidation
	case statusCode >= 500:
		return ClassServer
	case statusCode >= 400:
		return ClassClient
	}

	return ClassUnknown
}

var retryableStatusCodes = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// IsRetryableError reports whether an error of the given classification
// (optionally paired with a status code) should be retried. The
// network/timeout/server/rateLimit classifications are always retryable;
// a handful of status codes (408, 429, 500, 502, 503, 504) are retryable
// regardless of classification.
func IsRetryableError(classification Classification, statusCode int) bool {
	switch classification {
	case ClassNetwork, ClassTimeout, ClassServer, ClassRateLimit:
		return true
	}
	return retryableStatusCodes[statusCode]
}
