package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opspawn/agentkit/pkg/catalogue"
	"github.com/opspawn/agentkit/pkg/directory"
	"github.com/opspawn/agentkit/pkg/message"
	"github.com/opspawn/agentkit/pkg/outbound"
)

const logPrefix = "dispatcher:dispatch"

// AgentLookup resolves agent ids to records. Lookups are made fresh on every message.
type AgentLookup interface {
	Lookup(agentID string) (directory.AgentRecord, bool)
}

// ToolLookup resolves tool names to bindings.
type ToolLookup interface {
	Lookup(name string) (catalogue.Binding, bool)
}

// Scheduler accepts forwarded messages for delivery after Handle has returned.
type Scheduler interface {
	Schedule(agentID, callbackAddress string, msg message.Message) error
}

// RemoteCaller performs the HTTP call behind a remote tool binding.
type RemoteCaller interface {
	PostJSON(ctx context.Context, url string, body any) (*outbound.Response, error)
}

// Dispatcher handles one message addressed to one agent.
type Dispatcher struct {
	directory AgentLookup
	catalogue ToolLookup
	caller    RemoteCaller
	scheduler Scheduler
}

// NewDispatcherParams holds parameters for NewDispatcher.
type NewDispatcherParams struct {
	Directory AgentLookup
	Catalogue ToolLookup
	Caller    RemoteCaller
	Scheduler Scheduler
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(params NewDispatcherParams) *Dispatcher {
	return &Dispatcher{
		directory: params.Directory,
		catalogue: params.Catalogue,
		caller:    params.Caller,
		scheduler: params.Scheduler,
	}
}

// Handle routes msg for agentID and always returns an Outcome. Tool invocations complete
// before Handle returns; forwards are handed to the scheduler and reported as accepted.
func (d *Dispatcher) Handle(ctx context.Context, agentID string, msg message.Message) (out *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - panic while handling message for %s: %v", logPrefix, agentID, r))
			out = errorOutcome(ErrUnexpected, "An unexpected error occurred: %v", r)
		}
		logOutcome(agentID, msg, out)
	}()

	slog.Debug(fmt.Sprintf("%s - agent=%s sender=%s kind=%s", logPrefix, agentID, msg.SenderID, msg.Kind))

	rec, ok := d.directory.Lookup(agentID)
	if !ok {
		return errorOutcome(ErrAgentNotFound, "Agent with ID '%s' not found.", agentID)
	}

	switch msg.Route() {
	case message.RouteToolInvocation:
		return d.invokeTool(ctx, msg)
	default:
		return d.forward(rec, msg)
	}
}

func (d *Dispatcher) invokeTool(ctx context.Context, msg message.Message) *Outcome {
	toolName, ok := msg.ToolName()
	if !ok {
		return errorOutcome(ErrMissingToolName, "Missing 'tool_name' in payload for tool_invocation.")
	}
	args := msg.Arguments()

	binding, ok := d.catalogue.Lookup(toolName)
	if !ok {
		return errorOutcome(ErrToolNotFound, "Tool '%s' not found.", toolName)
	}

	var (
		tool   catalogue.Tool
		origin Origin
	)
	switch b := binding.(type) {
	case catalogue.LocalBinding:
		tool, origin = b.Tool, OriginLocal
	case catalogue.RemoteBinding:
		tool, origin = &remoteTool{binding: b, caller: d.caller}, OriginRemote
	default:
		return errorOutcome(ErrUnexpected, "Tool '%s' has an unsupported binding %T.", toolName, binding)
	}

	slog.Debug(fmt.Sprintf("%s - invoking %s tool %s", logPrefix, origin, toolName))
	result, err := runTool(ctx, tool, args, msg.SessionContext)
	return normalize(origin, toolName, result, err)
}

func (d *Dispatcher) forward(rec directory.AgentRecord, msg message.Message) *Outcome {
	if rec.CallbackAddress == "" || directory.ValidateCallbackAddress(rec.CallbackAddress) != nil {
		return errorOutcome(ErrNoCallbackEndpoint, "Agent '%s' has no valid callback address.", rec.AgentID)
	}
	if d.scheduler == nil {
		return errorOutcome(ErrDispatchQueueUnavailable, "Dispatch to agent '%s' is not available.", rec.AgentID)
	}
	if err := d.scheduler.Schedule(rec.AgentID, rec.CallbackAddress, msg); err != nil {
		return errorOutcome(ErrDispatchQueueUnavailable, "Could not schedule dispatch to agent '%s': %v", rec.AgentID, err)
	}
	return &Outcome{
		Status:  StatusAccepted,
		Summary: fmt.Sprintf("Message accepted for agent '%s'; dispatch scheduled.", rec.AgentID),
	}
}

// runTool executes tool and turns a panic into a *PanicError.
func runTool(ctx context.Context, tool catalogue.Tool, args, session map[string]any) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &PanicError{Value: r}
		}
	}()
	return tool.Execute(ctx, args, session)
}

func logOutcome(agentID string, msg message.Message, out *Outcome) {
	if out == nil {
		return
	}
	if out.IsError() {
		slog.Warn(fmt.Sprintf("%s - agent=%s kind=%s status=%s code=%s: %s",
			logPrefix, agentID, msg.Kind, out.Status, out.ErrorCode, out.Summary))
		return
	}
	slog.Debug(fmt.Sprintf("%s - agent=%s kind=%s status=%s", logPrefix, agentID, msg.Kind, out.Status))
}
