// Package catalogue holds the named tools agents can invoke, each bound either to an
// in-process handler or to a third-party HTTP endpoint.
package catalogue

import "context"

// Definition describes a tool to callers.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Tool is an invocable capability. Execute returns the tool's result mapping; a mapping whose
// "status" is "error" is a handled failure, a non-nil error is a crash.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, arguments map[string]any, session map[string]any) (map[string]any, error)
}

// BindingKind names the two ways a tool can be bound.
type BindingKind string

const (
	BindingLocal  BindingKind = "local"
	BindingRemote BindingKind = "remote"
)

// Binding is the closed set of tool bindings: LocalBinding or RemoteBinding.
type Binding interface {
	Kind() BindingKind
	Definition() Definition
	isBinding()
}

// LocalBinding runs a Tool in-process.
type LocalBinding struct {
	Tool Tool
}

func (LocalBinding) Kind() BindingKind        { return BindingLocal }
func (b LocalBinding) Definition() Definition { return b.Tool.Definition() }
func (LocalBinding) isBinding()               {}

// RemoteBinding invokes a third-party endpoint with POST {"arguments": ...}.
type RemoteBinding struct {
	Def         Definition
	EndpointURL string
}

func (RemoteBinding) Kind() BindingKind        { return BindingRemote }
func (b RemoteBinding) Definition() Definition { return b.Def }
func (RemoteBinding) isBinding()               {}

// Descriptor is the listing view of a catalogue entry.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Kind        BindingKind    `json:"kind"`
	Endpoint    string         `json:"endpoint,omitempty"`
}

// Error is a catalogue error with a machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Catalogue error codes.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeConflict        = "CONFLICT"
	CodeNotFound        = "NOT_FOUND"
)
