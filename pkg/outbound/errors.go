package outbound

import (
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies why an outbound call did not produce a 2xx response.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureUnreachable FailureKind = "unreachable"
	FailureHTTPStatus  FailureKind = "http_status"
	FailureCanceled    FailureKind = "canceled"
	FailureEncoding    FailureKind = "encoding"
)

// CallError is returned by Client.PostJSON for every non-2xx outcome.
type CallError struct {
	Kind       FailureKind
	URL        string
	StatusCode int
	Body       []byte
	Timeout    time.Duration
	Err        error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case FailureTimeout:
		return fmt.Sprintf("request to %s timed out after %s", e.URL, e.Timeout)
	case FailureHTTPStatus:
		return fmt.Sprintf("%s returned HTTP %d: %s", e.URL, e.StatusCode, truncate(string(e.Body), 200))
	case FailureUnreachable:
		return fmt.Sprintf("could not reach %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("call to %s failed (%s): %v", e.URL, e.Kind, e.Err)
	}
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// AsCallError extracts a *CallError from err.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
