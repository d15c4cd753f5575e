package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/opspawn/agentkit/pkg/catalogue"
	"github.com/opspawn/agentkit/pkg/db"
	"github.com/opspawn/agentkit/pkg/directory"
	"github.com/opspawn/agentkit/pkg/dispatcher"
	"github.com/opspawn/agentkit/pkg/message"
)

const apiLogPrefix = "server:api"

// maxBodyBytes caps request bodies on the JSON API.
const maxBodyBytes = 1 << 20

// API error codes for registration and lookup failures outside the dispatch taxonomy.
const (
	errCodeInvalidArgument dispatcher.ErrorCode = "InvalidArgument"
	errCodeConflict        dispatcher.ErrorCode = "Conflict"
	errCodeNotFound        dispatcher.ErrorCode = "NotFound"
	errCodeUnavailable     dispatcher.ErrorCode = "ServiceUnavailable"
)

// registerAgentResponse is the data of a successful registration.
type registerAgentResponse struct {
	AgentID string `json:"agentId"`
}

// externalToolRequest is the body of POST /v1/tools/external.
type externalToolRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Endpoint    string         `json:"endpoint"`
}

func (s *Server) handleRegisterAgent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input directory.RegisterInput
		if !decodeBody(w, r, &input) {
			return
		}
		rec, err := s.dir.Register(input)
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		slog.Info(fmt.Sprintf("%s - Registered agent %s (%s@%s)", apiLogPrefix, rec.AgentID, rec.AgentName, rec.Version))
		writeJSON(w, http.StatusCreated, &dispatcher.Outcome{
			Status:  dispatcher.StatusSuccess,
			Summary: "Agent registered successfully",
			Payload: registerAgentResponse{AgentID: rec.AgentID},
		})
	}
}

func (s *Server) handleListAgents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		agents, err := s.dir.List(directory.ListInput{
			Name:              q.Get("name"),
			Capability:        q.Get("capability"),
			VersionConstraint: q.Get("version"),
		})
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &dispatcher.Outcome{Status: dispatcher.StatusSuccess, Payload: agents})
	}
}

func (s *Server) handleGetAgent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := r.PathValue("agentId")
		rec, ok := s.dir.Lookup(agentID)
		if !ok {
			writeOutcome(w, dispatcher.ErrorOutcome(dispatcher.ErrAgentNotFound, fmt.Sprintf("Agent %s not found", agentID)))
			return
		}
		writeJSON(w, http.StatusOK, &dispatcher.Outcome{Status: dispatcher.StatusSuccess, Payload: rec})
	}
}

func (s *Server) handleRemoveAgent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := r.PathValue("agentId")
		if err := s.dir.Remove(agentID); err != nil {
			writeRegistryError(w, err)
			return
		}
		slog.Info(fmt.Sprintf("%s - Removed agent %s", apiLogPrefix, agentID))
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleRun decodes a message, dispatches it and maps the outcome to an HTTP status.
func (s *Server) handleRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := r.PathValue("agentId")

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeOutcome(w, dispatcher.ErrorOutcome(dispatcher.ErrInvalidRequest, "Failed to read request body"))
			return
		}
		msg, err := message.Decode(data)
		if err != nil {
			writeOutcome(w, dispatcher.ErrorOutcome(dispatcher.ErrInvalidRequest, "Request body is not a valid message"))
			return
		}
		if err := msg.Validate(); err != nil {
			out := dispatcher.ErrorOutcome(dispatcher.ErrInvalidRequest, err.Error())
			writeJSON(w, http.StatusUnprocessableEntity, out)
			return
		}

		out := s.disp.Handle(r.Context(), agentID, msg)
		writeOutcome(w, out)
	}
}

func (s *Server) handleListDeliveries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deliveries == nil {
			writeJSON(w, http.StatusServiceUnavailable, dispatcher.ErrorOutcome(errCodeUnavailable, "Delivery log is not enabled"))
			return
		}
		agentID := r.PathValue("agentId")
		params := db.ListDeliveriesParams{AgentID: agentID, Status: r.URL.Query().Get("status")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				writeJSON(w, http.StatusBadRequest, dispatcher.ErrorOutcome(errCodeInvalidArgument, "limit must be a non-negative integer"))
				return
			}
			params.Limit = limit
		}

		records, err := s.deliveries.ListDeliveries(r.Context(), params)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - list deliveries for %s: %v", apiLogPrefix, agentID, err))
			writeJSON(w, http.StatusInternalServerError, dispatcher.ErrorOutcome(dispatcher.ErrUnexpected, "Failed to read delivery log"))
			return
		}
		writeJSON(w, http.StatusOK, &dispatcher.Outcome{Status: dispatcher.StatusSuccess, Payload: records})
	}
}

func (s *Server) handleListTools() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &dispatcher.Outcome{Status: dispatcher.StatusSuccess, Payload: s.cat.List()})
	}
}

func (s *Server) handleRegisterExternalTool() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req externalToolRequest
		if !decodeBody(w, r, &req) {
			return
		}
		def := catalogue.Definition{Name: req.Name, Description: req.Description, Parameters: req.Parameters}
		if err := s.cat.RegisterRemote(def, req.Endpoint); err != nil {
			writeRegistryError(w, err)
			return
		}
		slog.Info(fmt.Sprintf("%s - Registered external tool %s -> %s", apiLogPrefix, req.Name, req.Endpoint))
		writeJSON(w, http.StatusCreated, &dispatcher.Outcome{
			Status:  dispatcher.StatusSuccess,
			Summary: "Tool registered successfully",
			Payload: map[string]string{"name": req.Name},
		})
	}
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// decodeBody decodes a JSON request body into v, writing a 400 outcome on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeOutcome(w, dispatcher.ErrorOutcome(dispatcher.ErrInvalidRequest, "Request body is not valid JSON: "+err.Error()))
		return false
	}
	return true
}

// writeRegistryError maps directory and catalogue errors onto HTTP statuses.
func writeRegistryError(w http.ResponseWriter, err error) {
	code := ""
	msg := err.Error()
	var dErr *directory.Error
	var cErr *catalogue.Error
	switch {
	case errors.As(err, &dErr):
		code, msg = dErr.Code, dErr.Message
	case errors.As(err, &cErr):
		code, msg = cErr.Code, cErr.Message
	}

	switch code {
	case directory.CodeInvalidArgument:
		writeJSON(w, http.StatusBadRequest, dispatcher.ErrorOutcome(errCodeInvalidArgument, msg))
	case directory.CodeConflict:
		writeJSON(w, http.StatusConflict, dispatcher.ErrorOutcome(errCodeConflict, msg))
	case directory.CodeNotFound:
		writeJSON(w, http.StatusNotFound, dispatcher.ErrorOutcome(errCodeNotFound, msg))
	default:
		slog.Error(fmt.Sprintf("%s - unexpected registry error: %v", apiLogPrefix, err))
		writeJSON(w, http.StatusInternalServerError, dispatcher.ErrorOutcome(dispatcher.ErrUnexpected, "An unexpected error occurred"))
	}
}

func writeOutcome(w http.ResponseWriter, out *dispatcher.Outcome) {
	writeJSON(w, out.HTTPStatus(), out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - response encode: %v", apiLogPrefix, err))
	}
}
