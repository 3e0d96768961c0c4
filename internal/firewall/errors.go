package firewall

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed remote call for retry decisions.
type ErrorKind int

const (
	// KindNetwork is a transport-level failure before any response arrived.
	KindNetwork ErrorKind = iota
	// KindRateLimited is a 429 or 503 response.
	KindRateLimited
	// KindServer is any other 5xx response.
	KindServer
	// KindClient is a non-retryable 4xx response: bad request, permission
	// denied, not found.
	KindClient
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network error"
	case KindRateLimited:
		return "rate limited"
	case KindServer:
		return "server error"
	default:
		return "client error"
	}
}

// APIError is a failed remote call with enough detail for the operator to act
// on it.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether retrying the call can succeed.
func (e *APIError) Retryable() bool {
	return e.Kind != KindClient
}

// IsRetryable reports whether err is a remote failure worth retrying with
// backoff. Anything that is not an APIError is treated as fatal.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// classifyStatus maps an HTTP response status to an APIError, or nil for
// success.
func classifyStatus(statusCode int, body string) *APIError {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable:
		return &APIError{Kind: KindRateLimited, StatusCode: statusCode, Message: body}
	case statusCode >= 500:
		return &APIError{Kind: KindServer, StatusCode: statusCode, Message: body}
	default:
		return &APIError{Kind: KindClient, StatusCode: statusCode, Message: body}
	}
}
