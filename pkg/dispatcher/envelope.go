// Package dispatcher routes an incoming agent message either to a tool invocation or to a
// deferred delivery at the target agent's callback address.
package dispatcher

import "github.com/opspawn/agentkit/pkg/message"

// Status is the terminal state of a handled message.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusAccepted Status = "accepted"
)

// Outcome is the uniform envelope returned for every handled message.
type Outcome struct {
	Status    Status    `json:"status"`
	Summary   string    `json:"message,omitempty"`
	Payload   any       `json:"data"`
	ErrorCode ErrorCode `json:"error_code,omitempty"`
	// UpstreamStatus is the HTTP status a remote tool answered with (ExternalToolHttpError only).
	UpstreamStatus int  `json:"upstream_status,omitempty"`
	Retryable      bool `json:"retryable,omitempty"`
}

// IsError reports whether the outcome carries an error code.
func (o *Outcome) IsError() bool {
	return o.Status == StatusError
}

// RunRequest is the JSON envelope for run requests received over COMMS.
type RunRequest struct {
	ID      string          `json:"id,omitempty"`
	AgentID string          `json:"agentId"`
	Message message.Message `json:"message"`
}

// RunResponse is the COMMS reply to a RunRequest.
type RunResponse struct {
	ID string `json:"id,omitempty"`
	*Outcome
}
