package server

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/opspawn/agentkit/pkg/commsutil"
	"github.com/opspawn/agentkit/pkg/dispatcher"
	"github.com/opspawn/agentkit/pkg/message"
)

const commsLogPrefix = "server:comms"

// maxInflightRuns caps the run requests handled at once across both subscriptions.
const maxInflightRuns = 64

// subscribe registers the run request handlers: RunRequest envelopes on the configured run
// subject, and bare messages on the per-agent run subjects. Each message is handled on its
// own goroutine; once maxInflightRuns are running, delivery waits for a free slot.
func (s *Server) subscribe(ctx context.Context) error {
	runSubject := s.cfg.RunSubject
	if runSubject == "" {
		runSubject = commsutil.SubjectRun
	}
	if s.inflight == nil {
		s.inflight = &errgroup.Group{}
		s.inflight.SetLimit(maxInflightRuns)
	}

	sub, err := s.nc.Subscribe(runSubject, func(msg *comms.Msg) {
		s.inflight.Go(func() error {
			s.respond(msg, s.handleRunRequest(ctx, msg.Data))
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", commsLogPrefix, runSubject, err)
	}
	s.subs = append(s.subs, sub)
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", commsLogPrefix, runSubject))

	agentSub, err := s.nc.Subscribe(commsutil.SubjectAgentRunWildcard, func(msg *comms.Msg) {
		agentID, ok := commsutil.ParseAgentRunSubject(msg.Subject)
		if !ok {
			s.respond(msg, &dispatcher.RunResponse{Outcome: dispatcher.ErrorOutcome(dispatcher.ErrInvalidRequest, "Invalid run subject")})
			return
		}
		s.inflight.Go(func() error {
			s.respond(msg, &dispatcher.RunResponse{Outcome: s.runMessage(ctx, agentID, msg.Data)})
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", commsLogPrefix, commsutil.SubjectAgentRunWildcard, err)
	}
	s.subs = append(s.subs, agentSub)
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", commsLogPrefix, commsutil.SubjectAgentRunWildcard))
	return nil
}

// unsubscribe stops intake and waits for run requests already being handled.
func (s *Server) unsubscribe() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Debug(fmt.Sprintf("%s - unsubscribe %s: %v", commsLogPrefix, sub.Subject, err))
		}
	}
	s.subs = nil
	if s.inflight != nil {
		_ = s.inflight.Wait()
	}
}

// handleRunRequest decodes a RunRequest envelope and dispatches its message.
func (s *Server) handleRunRequest(ctx context.Context, data []byte) *dispatcher.RunResponse {
	var req dispatcher.RunRequest
	if err := commsutil.DecodePayload(data, &req); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to decode run request: %v", commsLogPrefix, err))
		return &dispatcher.RunResponse{Outcome: dispatcher.ErrorOutcome(dispatcher.ErrInvalidRequest, "Failed to decode request")}
	}
	req.Message.FillDefaults()
	if err := req.Message.Validate(); err != nil {
		return &dispatcher.RunResponse{ID: req.ID, Outcome: dispatcher.ErrorOutcome(dispatcher.ErrInvalidRequest, err.Error())}
	}
	return &dispatcher.RunResponse{ID: req.ID, Outcome: s.disp.Handle(ctx, req.AgentID, req.Message)}
}

// runMessage decodes a bare message addressed to agentID and dispatches it.
func (s *Server) runMessage(ctx context.Context, agentID string, data []byte) *dispatcher.Outcome {
	msg, err := message.Decode(data)
	if err != nil {
		return dispatcher.ErrorOutcome(dispatcher.ErrInvalidRequest, "Failed to decode message")
	}
	if err := msg.Validate(); err != nil {
		return dispatcher.ErrorOutcome(dispatcher.ErrInvalidRequest, err.Error())
	}
	return s.disp.Handle(ctx, agentID, msg)
}

func (s *Server) respond(msg *comms.Msg, resp *dispatcher.RunResponse) {
	if msg.Reply == "" {
		return
	}
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", commsLogPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - respond on %s: %v", commsLogPrefix, msg.Reply, err))
	}
}
