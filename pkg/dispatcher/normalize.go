package dispatcher

import (
	"errors"
	"fmt"

	"github.com/opspawn/agentkit/pkg/outbound"
)

// Origin says where a tool result came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// PanicError wraps a value recovered from a panicking local tool.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// InvalidResponseError is returned when a remote tool answers 2xx with a body that is not JSON.
type InvalidResponseError struct {
	URL string
	Err error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("%s returned a non-JSON body: %v", e.URL, e.Err)
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

// normalize converts a tool result or failure into an Outcome. It never yields accepted.
func normalize(origin Origin, toolName string, result map[string]any, err error) *Outcome {
	if err != nil {
		return classifyToolError(origin, toolName, err)
	}
	if result == nil {
		result = map[string]any{}
	}

	if status, _ := result["status"].(string); status == "error" {
		code := ErrLocalToolExecutionFailed
		if origin == OriginRemote {
			code = ErrExternalToolExecutionFailed
		}
		out := errorOutcome(code, "Tool '%s' execution failed: %s", toolName, errorMessage(result))
		out.Payload = result
		return out
	}

	return &Outcome{
		Status:  StatusSuccess,
		Summary: fmt.Sprintf("Tool '%s' executed successfully.", toolName),
		Payload: result,
	}
}

// classifyToolError maps a failure to exactly one error code. Anything a local tool
// returns or raises is a crash.
func classifyToolError(origin Origin, toolName string, err error) *Outcome {
	if origin == OriginLocal {
		return errorOutcome(ErrToolCrashed, "Tool '%s' crashed: %v", toolName, err)
	}

	if ce, ok := outbound.AsCallError(err); ok {
		switch ce.Kind {
		case outbound.FailureTimeout:
			return errorOutcome(ErrExternalToolTimeout, "Tool '%s' timed out after %s.", toolName, ce.Timeout)
		case outbound.FailureUnreachable:
			return errorOutcome(ErrExternalToolUnreachable, "Tool '%s' is unreachable: %v", toolName, ce.Err)
		case outbound.FailureHTTPStatus:
			out := errorOutcome(ErrExternalToolHTTPError, "Tool '%s' returned HTTP %d.", toolName, ce.StatusCode)
			out.UpstreamStatus = ce.StatusCode
			return out
		}
		return errorOutcome(ErrUnexpected, "Tool '%s' call failed: %v", toolName, err)
	}

	var ire *InvalidResponseError
	if errors.As(err, &ire) {
		return errorOutcome(ErrExternalToolInvalidResponse, "Tool '%s' returned an invalid response: %v", toolName, ire.Err)
	}
	return errorOutcome(ErrUnexpected, "Tool '%s' failed: %v", toolName, err)
}

func errorMessage(result map[string]any) string {
	if msg, ok := result["error_message"].(string); ok && msg != "" {
		return msg
	}
	return "tool reported an error"
}
