// Package sdk is a Go client for the agentkit HTTP API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opspawn/agentkit/pkg/catalogue"
	"github.com/opspawn/agentkit/pkg/db"
	"github.com/opspawn/agentkit/pkg/directory"
	"github.com/opspawn/agentkit/pkg/dispatcher"
	"github.com/opspawn/agentkit/pkg/message"
)

const logPrefix = "sdk:client"

// DefaultBaseURL is where a locally started agentkitd listens.
const DefaultBaseURL = "http://localhost:8000"

// DefaultTimeout bounds each API call when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// APIError is returned when the service answers with a non-2xx status or an error outcome.
type APIError struct {
	StatusCode int
	Message    string
	ErrorCode  dispatcher.ErrorCode
	Body       []byte
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("agentkit API error (HTTP %d): %s", e.StatusCode, e.Message)
	if e.ErrorCode != "" {
		msg += fmt.Sprintf(" (Code: %s)", e.ErrorCode)
	}
	return msg
}

// IsNotFound reports whether err is an APIError for a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to one agentkit service. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClientParams holds parameters for NewClient.
type NewClientParams struct {
	// BaseURL of the service. Empty means DefaultBaseURL.
	BaseURL string
	// HTTPClient overrides the underlying client. Nil means a client with DefaultTimeout.
	HTTPClient *http.Client
}

// NewClient creates a new Client.
func NewClient(params NewClientParams) *Client {
	base := strings.TrimRight(params.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := params.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: base, http: hc}
}

// BaseURL returns the service URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope mirrors dispatcher.Outcome with the payload left undecoded.
type envelope struct {
	Status         dispatcher.Status    `json:"status"`
	Message        string               `json:"message"`
	Data           json.RawMessage      `json:"data"`
	ErrorCode      dispatcher.ErrorCode `json:"error_code"`
	UpstreamStatus int                  `json:"upstream_status"`
	Retryable      bool                 `json:"retryable"`
}

// RegisterAgent registers an agent and returns the ID the service assigned.
func (c *Client) RegisterAgent(ctx context.Context, input directory.RegisterInput) (string, error) {
	var out struct {
		AgentID string `json:"agentId"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/v1/agents/register", input, &out); err != nil {
		return "", err
	}
	if out.AgentID == "" {
		return "", fmt.Errorf("%s - registration response carried no agentId", logPrefix)
	}
	return out.AgentID, nil
}

// SendMessage posts msg to the target agent and returns the service outcome. Accepted
// forwards and successful tool invocations return a nil error; error outcomes return the
// decoded outcome together with an *APIError.
func (c *Client) SendMessage(ctx context.Context, targetAgentID string, msg message.Message) (*dispatcher.Outcome, error) {
	env, err := c.do(ctx, http.MethodPost, "/v1/agents/"+url.PathEscape(targetAgentID)+"/run", msg, nil)
	if env == nil {
		return nil, err
	}
	out := &dispatcher.Outcome{
		Status:         env.Status,
		Summary:        env.Message,
		ErrorCode:      env.ErrorCode,
		UpstreamStatus: env.UpstreamStatus,
		Retryable:      env.Retryable,
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		var payload any
		if jsonErr := json.Unmarshal(env.Data, &payload); jsonErr == nil {
			out.Payload = payload
		}
	}
	return out, err
}

// ListAgentsParams filters ListAgents. Empty fields match everything.
type ListAgentsParams struct {
	Name       string
	Capability string
	Version    string
}

// ListAgents returns the registered agents matching params.
func (c *Client) ListAgents(ctx context.Context, params ListAgentsParams) ([]directory.AgentRecord, error) {
	q := url.Values{}
	if params.Name != "" {
		q.Set("name", params.Name)
	}
	if params.Capability != "" {
		q.Set("capability", params.Capability)
	}
	if params.Version != "" {
		q.Set("version", params.Version)
	}
	path := "/v1/agents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var agents []directory.AgentRecord
	if _, err := c.do(ctx, http.MethodGet, path, nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// GetAgent returns one agent. A missing agent is an *APIError for which IsNotFound is true.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*directory.AgentRecord, error) {
	var rec directory.AgentRecord
	if _, err := c.do(ctx, http.MethodGet, "/v1/agents/"+url.PathEscape(agentID), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RemoveAgent deregisters an agent.
func (c *Client) RemoveAgent(ctx context.Context, agentID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/agents/"+url.PathEscape(agentID), nil, nil)
	return err
}

// ListTools returns the catalogue listing.
func (c *Client) ListTools(ctx context.Context) ([]catalogue.Descriptor, error) {
	var tools []catalogue.Descriptor
	if _, err := c.do(ctx, http.MethodGet, "/v1/tools", nil, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// ExternalTool is a third-party tool to bind by endpoint.
type ExternalTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Endpoint    string         `json:"endpoint"`
}

// RegisterExternalTool binds a remote tool in the service catalogue.
func (c *Client) RegisterExternalTool(ctx context.Context, tool ExternalTool) error {
	_, err := c.do(ctx, http.MethodPost, "/v1/tools/external", tool, nil)
	return err
}

// ListDeliveriesParams filters ListDeliveries. Zero values mean no filter.
type ListDeliveriesParams struct {
	Status string
	Limit  int
}

// ListDeliveries reads the persisted deferred deliveries for one agent. The service answers
// 503 when its delivery log is disabled.
func (c *Client) ListDeliveries(ctx context.Context, agentID string, params ListDeliveriesParams) ([]db.DeliveryRecord, error) {
	q := url.Values{}
	if params.Status != "" {
		q.Set("status", params.Status)
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	path := "/v1/agents/" + url.PathEscape(agentID) + "/deliveries"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var records []db.DeliveryRecord
	if _, err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// do sends one request. The decoded envelope is returned whenever the body was an outcome,
// even alongside an *APIError; data is decoded into out only on success.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s - encode request: %w", logPrefix, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s - build request: %w", logPrefix, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s - network error communicating with agentkit: %w", logPrefix, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s - read response: %w", logPrefix, err)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var env envelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw)), Body: raw}
		}
		return nil, fmt.Errorf("%s - decode response: %w", logPrefix, jsonErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || env.Status == dispatcher.StatusError {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &env, &APIError{StatusCode: resp.StatusCode, Message: msg, ErrorCode: env.ErrorCode, Body: raw}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &env, fmt.Errorf("%s - decode response data: %w", logPrefix, err)
		}
	}
	return &env, nil
}
