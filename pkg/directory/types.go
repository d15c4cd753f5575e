// Package directory keeps the registry of agents and their callback addresses.
package directory

import "time"

// AgentRecord is what the directory knows about one registered agent. Records are returned
// by value; callers never share state with the directory.
type AgentRecord struct {
	AgentID         string         `json:"agentId"`
	AgentName       string         `json:"agentName"`
	Version         string         `json:"version"`
	Capabilities    []string       `json:"capabilities"`
	CallbackAddress string         `json:"contactEndpoint,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	RegisteredAt    time.Time      `json:"registrationTime"`
}

// HasCapability reports whether the agent advertises capability.
func (r AgentRecord) HasCapability(capability string) bool {
	for _, c := range r.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// RegisterInput holds the fields accepted at registration.
type RegisterInput struct {
	// AgentID is optional; a UUID is generated when empty.
	AgentID         string         `json:"agentId,omitempty"`
	AgentName       string         `json:"agentName"`
	Version         string         `json:"version"`
	Capabilities    []string       `json:"capabilities,omitempty"`
	CallbackAddress string         `json:"contactEndpoint,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// ListInput filters List results. Empty fields match everything.
type ListInput struct {
	Name              string
	Capability        string
	VersionConstraint string
}

// Error is a directory error with a machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Directory error codes.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeConflict        = "CONFLICT"
	CodeNotFound        = "NOT_FOUND"
)
