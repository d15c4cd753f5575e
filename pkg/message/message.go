// Package message defines the unit of communication exchanged between agents.
package message

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

const logPrefix = "message:message"

// KindToolInvocation is the only message kind that selects the tool path.
const KindToolInvocation = "tool_invocation"

// Body keys read on the tool path.
const (
	BodyToolName  = "tool_name"
	BodyArguments = "arguments"
	// bodyLegacyParameters is accepted when arguments is absent.
	bodyLegacyParameters = "parameters"
)

// Route is the closed set of dispatch paths a message can take.
type Route int

const (
	RouteForward Route = iota
	RouteToolInvocation
)

func (r Route) String() string {
	switch r {
	case RouteToolInvocation:
		return "tool_invocation"
	default:
		return "forward"
	}
}

// Message is sent by one agent and addressed to another through the directory.
type Message struct {
	SenderID       string         `json:"senderId"`
	Kind           string         `json:"messageType"`
	Body           map[string]any `json:"payload"`
	SessionContext map[string]any `json:"sessionContext,omitempty"`
	CreatedAt      time.Time      `json:"timestamp"`

	// Correlation fields set by orchestrators; passed through untouched.
	TaskName     string `json:"task_name,omitempty"`
	OpsSessionID string `json:"opscore_session_id,omitempty"`
	OpsTaskID    string `json:"opscore_task_id,omitempty"`
}

// New builds a message stamped with the current UTC time.
func New(senderID, kind string, body map[string]any) Message {
	if body == nil {
		body = map[string]any{}
	}
	return Message{
		SenderID:  senderID,
		Kind:      kind,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
}

// Decode parses a message from JSON and stamps CreatedAt when the sender omitted it.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%s - decode message: %w", logPrefix, err)
	}
	m.FillDefaults()
	return m, nil
}

// FillDefaults stamps a missing creation time and replaces a nil body with an empty one.
func (m *Message) FillDefaults() {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Body == nil {
		m.Body = map[string]any{}
	}
}

// Validate checks the fields every message must carry.
func (m Message) Validate() error {
	if strings.TrimSpace(m.SenderID) == "" {
		return fmt.Errorf("%s - senderId is required", logPrefix)
	}
	if strings.TrimSpace(m.Kind) == "" {
		return fmt.Errorf("%s - messageType is required", logPrefix)
	}
	return nil
}

// Route classifies the message. Only the exact kind "tool_invocation" selects the tool path.
func (m Message) Route() Route {
	if m.Kind == KindToolInvocation {
		return RouteToolInvocation
	}
	return RouteForward
}

// ToolName returns body.tool_name when it is a non-empty string.
func (m Message) ToolName() (string, bool) {
	v, ok := m.Body[BodyToolName]
	if !ok {
		return "", false
	}
	name, ok := v.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

// Arguments returns a shallow copy of body.arguments, falling back to body.parameters,
// or an empty mapping.
func (m Message) Arguments() map[string]any {
	for _, key := range []string{BodyArguments, bodyLegacyParameters} {
		if v, ok := m.Body[key]; ok {
			if args, ok := v.(map[string]any); ok && args != nil {
				return maps.Clone(args)
			}
			return map[string]any{}
		}
	}
	return map[string]any{}
}
