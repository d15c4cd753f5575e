package dispatcher

import (
	"fmt"
	"net/http"
)

// ErrorCode identifies why a message could not be handled successfully.
type ErrorCode string

const (
	ErrAgentNotFound               ErrorCode = "AgentNotFound"
	ErrMissingToolName             ErrorCode = "MissingToolName"
	ErrToolNotFound                ErrorCode = "ToolNotFound"
	ErrToolCrashed                 ErrorCode = "ToolCrashed"
	ErrExternalToolTimeout         ErrorCode = "ExternalToolTimeout"
	ErrExternalToolUnreachable     ErrorCode = "ExternalToolUnreachable"
	ErrExternalToolHTTPError       ErrorCode = "ExternalToolHttpError"
	ErrExternalToolInvalidResponse ErrorCode = "ExternalToolInvalidResponse"
	ErrLocalToolExecutionFailed    ErrorCode = "LocalToolExecutionFailed"
	ErrExternalToolExecutionFailed ErrorCode = "ExternalToolExecutionFailed"
	ErrNoCallbackEndpoint          ErrorCode = "NoCallbackEndpoint"
	ErrDispatchQueueUnavailable    ErrorCode = "DispatchQueueUnavailable"
	ErrUnexpected                  ErrorCode = "UnexpectedError"
	// ErrInvalidRequest is produced by transports before Handle is reached.
	ErrInvalidRequest ErrorCode = "InvalidRequest"
)

// HTTPStatus maps an outcome to the transport status code.
func (o *Outcome) HTTPStatus() int {
	switch o.Status {
	case StatusSuccess:
		return http.StatusOK
	case StatusAccepted:
		return http.StatusAccepted
	}
	switch o.ErrorCode {
	case ErrLocalToolExecutionFailed, ErrExternalToolExecutionFailed:
		// the tool ran and reported its own failure
		return http.StatusOK
	case ErrAgentNotFound, ErrToolNotFound:
		return http.StatusNotFound
	case ErrMissingToolName, ErrNoCallbackEndpoint, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrExternalToolTimeout:
		return http.StatusGatewayTimeout
	case ErrExternalToolUnreachable, ErrDispatchQueueUnavailable:
		return http.StatusServiceUnavailable
	case ErrExternalToolInvalidResponse:
		return http.StatusBadGateway
	case ErrExternalToolHTTPError:
		if o.UpstreamStatus >= 400 && o.UpstreamStatus <= 599 {
			return o.UpstreamStatus
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// retryable marks codes a caller may reasonably retry later.
func retryable(code ErrorCode) bool {
	switch code {
	case ErrExternalToolTimeout, ErrExternalToolUnreachable, ErrDispatchQueueUnavailable:
		return true
	}
	return false
}

func errorOutcome(code ErrorCode, format string, args ...any) *Outcome {
	return &Outcome{
		Status:    StatusError,
		Summary:   fmt.Sprintf(format, args...),
		ErrorCode: code,
		Retryable: retryable(code),
	}
}

// ErrorOutcome builds an error outcome for transports that reject a request before dispatch.
func ErrorOutcome(code ErrorCode, summary string) *Outcome {
	return errorOutcome(code, "%s", summary)
}
