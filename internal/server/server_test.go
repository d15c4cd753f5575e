package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opspawn/agentkit/internal/config"
	"github.com/opspawn/agentkit/pkg/catalogue"
	"github.com/opspawn/agentkit/pkg/db"
	"github.com/opspawn/agentkit/pkg/directory"
	"github.com/opspawn/agentkit/pkg/dispatcher"
	"github.com/opspawn/agentkit/pkg/outbound"
	"github.com/opspawn/agentkit/pkg/scheduler"
	"github.com/opspawn/agentkit/pkg/tools"
)

const serverTestPrefix = "server:server_test"

// fakeDeliveries records the last query and returns canned records.
type fakeDeliveries struct {
	mu      sync.Mutex
	last    db.ListDeliveriesParams
	records []db.DeliveryRecord
	err     error
}

func (f *fakeDeliveries) ListDeliveries(_ context.Context, params db.ListDeliveriesParams) ([]db.DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = params
	return f.records, f.err
}

type testEnv struct {
	srv  *Server
	http *httptest.Server
	dir  *directory.Directory
	cat  *catalogue.Catalogue
}

// newTestEnv builds a fully wired Server with builtins and a running scheduler.
func newTestEnv(t *testing.T, mutate func(p *Params)) *testEnv {
	t.Helper()
	cfg := &config.Config{
		HealthCheckTimeout: 5 * time.Second,
		CallTimeout:        2 * time.Second,
		RunSubject:         "agentkit.run",
	}
	dir := directory.New()
	cat := catalogue.New()
	if err := tools.RegisterBuiltins(cat, tools.BuiltinParams{}); err != nil {
		t.Fatalf("%s - RegisterBuiltins: %v", serverTestPrefix, err)
	}
	client := outbound.NewClient(outbound.NewClientParams{Timeout: cfg.CallTimeout})
	sched := scheduler.New(scheduler.Params{Poster: client, Workers: 2, QueueSize: 8})
	sched.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sched.Close(ctx)
	})

	params := Params{
		Config:    cfg,
		Directory: dir,
		Catalogue: cat,
		Scheduler: sched,
		Dispatcher: dispatcher.NewDispatcher(dispatcher.NewDispatcherParams{
			Directory: dir,
			Catalogue: cat,
			Caller:    client,
			Scheduler: sched,
		}),
	}
	if mutate != nil {
		mutate(&params)
	}
	srv := New(params)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, http: ts, dir: dir, cat: cat}
}

type apiResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, apiResponse) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("%s - marshal body: %v", serverTestPrefix, err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.http.URL+path, r)
	if err != nil {
		t.Fatalf("%s - new request: %v", serverTestPrefix, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s - %s %s: %v", serverTestPrefix, method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out apiResponse
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s - decode %s: %v", serverTestPrefix, raw, err)
		}
	}
	return resp, out
}

func (e *testEnv) registerAgent(t *testing.T, name, callback string) string {
	t.Helper()
	resp, out := e.do(t, http.MethodPost, "/v1/agents/register", map[string]any{
		"agentName":       name,
		"version":         "1.0.0",
		"capabilities":    []string{"chat"},
		"contactEndpoint": callback,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("%s - register %s: status %d (%s)", serverTestPrefix, name, resp.StatusCode, out.Message)
	}
	var data struct {
		AgentID string `json:"agentId"`
	}
	if err := json.Unmarshal(out.Data, &data); err != nil || data.AgentID == "" {
		t.Fatalf("%s - register response missing agentId: %s", serverTestPrefix, out.Data)
	}
	return data.AgentID
}

func TestRegisterAgent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerAgent(t, "planner", "")

	tests := []struct {
		name     string
		body     any
		want     int
		wantCode string
	}{
		{"duplicate name", map[string]any{"agentName": "planner", "version": "2.0.0"}, http.StatusConflict, "Conflict"},
		{"bad version", map[string]any{"agentName": "other", "version": "x.y"}, http.StatusBadRequest, "InvalidArgument"},
		{"bad callback", map[string]any{"agentName": "other", "version": "1.0.0", "contactEndpoint": "ftp://x"}, http.StatusBadRequest, "InvalidArgument"},
		{"not json", "{nope", http.StatusBadRequest, "InvalidRequest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := env.do(t, http.MethodPost, "/v1/agents/register", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("%s - status = %d, want %d", serverTestPrefix, resp.StatusCode, tt.want)
			}
			if out.Status != "error" || out.ErrorCode != tt.wantCode {
				t.Errorf("%s - envelope = %+v, want error %s", serverTestPrefix, out, tt.wantCode)
			}
		})
	}
}

func TestGetListRemoveAgent(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.registerAgent(t, "planner", "")
	env.registerAgent(t, "worker", "")

	resp, out := env.do(t, http.MethodGet, "/v1/agents/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - get status = %d", serverTestPrefix, resp.StatusCode)
	}
	var rec directory.AgentRecord
	if err := json.Unmarshal(out.Data, &rec); err != nil || rec.AgentName != "planner" {
		t.Errorf("%s - get record = %+v, %v", serverTestPrefix, rec, err)
	}

	_, out = env.do(t, http.MethodGet, "/v1/agents?capability=chat&version=^1", nil)
	var list []directory.AgentRecord
	if err := json.Unmarshal(out.Data, &list); err != nil || len(list) != 2 {
		t.Errorf("%s - list = %d, %v", serverTestPrefix, len(list), err)
	}

	resp, out = env.do(t, http.MethodGet, "/v1/agents?version=not-a-range", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("%s - invalid constraint status = %d (%s)", serverTestPrefix, resp.StatusCode, out.Message)
	}

	resp, _ = env.do(t, http.MethodDelete, "/v1/agents/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("%s - delete status = %d", serverTestPrefix, resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodDelete, "/v1/agents/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("%s - second delete status = %d", serverTestPrefix, resp.StatusCode)
	}
	resp, out = env.do(t, http.MethodGet, "/v1/agents/"+id, nil)
	if resp.StatusCode != http.StatusNotFound || out.ErrorCode != string(dispatcher.ErrAgentNotFound) {
		t.Errorf("%s - get removed = %d %s", serverTestPrefix, resp.StatusCode, out.ErrorCode)
	}
}

func TestRun_EchoTool(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.registerAgent(t, "planner", "")

	resp, out := env.do(t, http.MethodPost, "/v1/agents/"+id+"/run", map[string]any{
		"senderId":    "caller",
		"messageType": "tool_invocation",
		"payload":     map[string]any{"tool_name": "echo", "arguments": map[string]any{"x": 1}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - status = %d (%s)", serverTestPrefix, resp.StatusCode, out.Message)
	}
	if resp.Header.Get("X-Process-Time") == "" {
		t.Errorf("%s - missing X-Process-Time header", serverTestPrefix)
	}
	var data map[string]any
	_ = json.Unmarshal(out.Data, &data)
	if out.Status != "success" || data["result"] != "Executed with {'x': 1}" {
		t.Errorf("%s - unexpected outcome %+v data=%v", serverTestPrefix, out, data)
	}
}

func TestRun_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.registerAgent(t, "planner", "")

	tests := []struct {
		name     string
		agentID  string
		body     any
		want     int
		wantCode string
	}{
		{"unknown agent", "missing", map[string]any{"senderId": "c", "messageType": "chat"}, http.StatusNotFound, "AgentNotFound"},
		{"ghost tool", id, map[string]any{"senderId": "c", "messageType": "tool_invocation", "payload": map[string]any{"tool_name": "ghost"}}, http.StatusNotFound, "ToolNotFound"},
		{"missing tool name", id, map[string]any{"senderId": "c", "messageType": "tool_invocation", "payload": map[string]any{}}, http.StatusBadRequest, "MissingToolName"},
		{"no callback", id, map[string]any{"senderId": "c", "messageType": "chat", "payload": map[string]any{"a": 1}}, http.StatusBadRequest, "NoCallbackEndpoint"},
		{"missing sender", id, map[string]any{"messageType": "chat"}, http.StatusUnprocessableEntity, "InvalidRequest"},
		{"not json", id, "[", http.StatusBadRequest, "InvalidRequest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := env.do(t, http.MethodPost, "/v1/agents/"+tt.agentID+"/run", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("%s - status = %d, want %d", serverTestPrefix, resp.StatusCode, tt.want)
			}
			if out.ErrorCode != tt.wantCode {
				t.Errorf("%s - error_code = %q, want %q", serverTestPrefix, out.ErrorCode, tt.wantCode)
			}
		})
	}
}

func TestRun_ForwardDeliversToCallback(t *testing.T) {
	received := make(chan map[string]any, 1)
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer callback.Close()

	env := newTestEnv(t, nil)
	id := env.registerAgent(t, "worker", callback.URL)

	resp, out := env.do(t, http.MethodPost, "/v1/agents/"+id+"/run", map[string]any{
		"senderId":    "caller",
		"messageType": "chat",
		"payload":     map[string]any{"a": 1},
	})
	if resp.StatusCode != http.StatusAccepted || out.Status != "accepted" {
		t.Fatalf("%s - status = %d %s", serverTestPrefix, resp.StatusCode, out.Status)
	}

	select {
	case body := <-received:
		payload, _ := body["payload"].(map[string]any)
		if payload["a"] != float64(1) || body["senderId"] != "caller" {
			t.Errorf("%s - callback body = %v", serverTestPrefix, body)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - callback was not invoked", serverTestPrefix)
	}
}

func TestExternalTools(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Arguments map[string]any `json:"arguments"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "city": body.Arguments["city"]})
	}))
	defer remote.Close()

	env := newTestEnv(t, nil)
	id := env.registerAgent(t, "planner", "")

	resp, out := env.do(t, http.MethodPost, "/v1/tools/external", map[string]any{
		"name":        "weather",
		"description": "Weather lookup",
		"endpoint":    remote.URL,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("%s - register tool status = %d (%s)", serverTestPrefix, resp.StatusCode, out.Message)
	}

	resp, _ = env.do(t, http.MethodPost, "/v1/tools/external", map[string]any{"name": "echo", "endpoint": remote.URL})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("%s - builtin collision status = %d, want 409", serverTestPrefix, resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/v1/tools/external", map[string]any{"name": "bad", "endpoint": "not a url"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("%s - invalid endpoint status = %d, want 400", serverTestPrefix, resp.StatusCode)
	}

	_, out = env.do(t, http.MethodGet, "/v1/tools", nil)
	var descs []catalogue.Descriptor
	if err := json.Unmarshal(out.Data, &descs); err != nil {
		t.Fatalf("%s - decode tools: %v", serverTestPrefix, err)
	}
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	if strings.Join(names, ",") != "echo,llm_completion,weather" {
		t.Errorf("%s - tools = %v", serverTestPrefix, names)
	}

	resp, out = env.do(t, http.MethodPost, "/v1/agents/"+id+"/run", map[string]any{
		"senderId":    "caller",
		"messageType": "tool_invocation",
		"payload":     map[string]any{"tool_name": "weather", "arguments": map[string]any{"city": "Oslo"}},
	})
	var data map[string]any
	_ = json.Unmarshal(out.Data, &data)
	if resp.StatusCode != http.StatusOK || data["city"] != "Oslo" {
		t.Errorf("%s - remote run = %d %v", serverTestPrefix, resp.StatusCode, data)
	}
}

func TestListDeliveries(t *testing.T) {
	disabled := newTestEnv(t, nil)
	resp, _ := disabled.do(t, http.MethodGet, "/v1/agents/a/deliveries", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("%s - disabled log status = %d, want 503", serverTestPrefix, resp.StatusCode)
	}

	store := &fakeDeliveries{records: []db.DeliveryRecord{{ID: "d-1", AgentID: "a", Status: "delivered"}}}
	env := newTestEnv(t, func(p *Params) { p.Deliveries = store })

	resp, out := env.do(t, http.MethodGet, "/v1/agents/a/deliveries?status=delivered&limit=5", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s - status = %d", serverTestPrefix, resp.StatusCode)
	}
	var recs []db.DeliveryRecord
	if err := json.Unmarshal(out.Data, &recs); err != nil || len(recs) != 1 || recs[0].ID != "d-1" {
		t.Errorf("%s - records = %+v, %v", serverTestPrefix, recs, err)
	}
	store.mu.Lock()
	last := store.last
	store.mu.Unlock()
	if last != (db.ListDeliveriesParams{AgentID: "a", Status: "delivered", Limit: 5}) {
		t.Errorf("%s - params = %+v", serverTestPrefix, last)
	}

	resp, _ = env.do(t, http.MethodGet, "/v1/agents/a/deliveries?limit=lots", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("%s - bad limit status = %d, want 400", serverTestPrefix, resp.StatusCode)
	}

	store.mu.Lock()
	store.err = errors.New("db down")
	store.mu.Unlock()
	resp, _ = env.do(t, http.MethodGet, "/v1/agents/a/deliveries", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("%s - store error status = %d, want 500", serverTestPrefix, resp.StatusCode)
	}
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, func(p *Params) {
		p.DBPing = func(context.Context) error { return nil }
	})
	resp, err := http.Get(env.http.URL + "/health")
	if err != nil {
		t.Fatalf("%s - GET /health: %v", serverTestPrefix, err)
	}
	var h HealthOutput
	_ = json.NewDecoder(resp.Body).Decode(&h)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || h.Status != "healthy" {
		t.Errorf("%s - health = %d %+v", serverTestPrefix, resp.StatusCode, h)
	}
	if h.Checks.Database == nil || !*h.Checks.Database || h.Checks.Comms != nil {
		t.Errorf("%s - checks = %+v", serverTestPrefix, h.Checks)
	}
	if h.Scheduler == nil || h.Scheduler.Workers != 2 || h.Tools != 2 {
		t.Errorf("%s - scheduler/tools = %+v / %d", serverTestPrefix, h.Scheduler, h.Tools)
	}

	down := newTestEnv(t, func(p *Params) {
		p.DBPing = func(context.Context) error { return errors.New("unreachable") }
	})
	resp, err = http.Get(down.http.URL + "/health")
	if err != nil {
		t.Fatalf("%s - GET /health: %v", serverTestPrefix, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("%s - unhealthy status = %d, want 503", serverTestPrefix, resp.StatusCode)
	}
}

func TestReadyHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Get(env.http.URL + "/ready")
	if err != nil {
		t.Fatalf("%s - GET /ready: %v", serverTestPrefix, err)
	}
	defer resp.Body.Close()
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ready" {
		t.Errorf("%s - ready = %d %v", serverTestPrefix, resp.StatusCode, body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodDelete, "/v1/tools", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("%s - status = %d, want 405", serverTestPrefix, resp.StatusCode)
	}
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("%s - GET %s: %v", serverTestPrefix, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestPages(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerAgent(t, "planner", "")

	status, body := getBody(t, env.http.URL+"/")
	if status != http.StatusOK || !strings.Contains(body, "planner") || !strings.Contains(body, `href="/tools/echo"`) {
		t.Errorf("%s - home page = %d, missing agent or tool", serverTestPrefix, status)
	}
	if status, _ := getBody(t, env.http.URL+"/nope"); status != http.StatusNotFound {
		t.Errorf("%s - unknown page status = %d, want 404", serverTestPrefix, status)
	}

	status, body = getBody(t, env.http.URL+"/tools/echo")
	if status != http.StatusOK || !strings.Contains(body, "/tools/echo/docs") {
		t.Errorf("%s - tool detail = %d", serverTestPrefix, status)
	}
	if status, _ := getBody(t, env.http.URL+"/tools/ghost"); status != http.StatusNotFound {
		t.Errorf("%s - ghost tool detail status = %d, want 404", serverTestPrefix, status)
	}

	status, body = getBody(t, env.http.URL+"/tools/echo/openapi.json")
	var spec openAPI3Spec
	if err := json.Unmarshal([]byte(body), &spec); err != nil || status != http.StatusOK {
		t.Fatalf("%s - openapi = %d, %v", serverTestPrefix, status, err)
	}
	if spec.Info.Title != "echo" || spec.Paths["/v1/agents/{agentId}/run"].Post == nil {
		t.Errorf("%s - openapi spec = %+v", serverTestPrefix, spec)
	}

	status, body = getBody(t, env.http.URL+"/tools/echo/docs")
	if status != http.StatusOK || !strings.Contains(body, "/tools/echo/openapi.json") {
		t.Errorf("%s - docs page = %d", serverTestPrefix, status)
	}
}

func TestBuildOpenAPISpec(t *testing.T) {
	spec := buildOpenAPISpec(catalogue.Descriptor{Name: "weather"})
	if spec.OpenAPI != "3.0.0" || spec.Info.Description != "Tool weather" {
		t.Errorf("%s - info = %+v", serverTestPrefix, spec.Info)
	}
	op := spec.Paths["/v1/agents/{agentId}/run"].Post
	if op == nil || op.OperationID != "weather" {
		t.Fatalf("%s - operation = %+v", serverTestPrefix, op)
	}
	schema := op.RequestBody.Content["application/json"].Schema
	payload := schema["properties"].(map[string]any)["payload"].(map[string]any)
	args := payload["properties"].(map[string]any)["arguments"].(map[string]any)
	if args["type"] != "object" {
		t.Errorf("%s - default arguments schema = %v", serverTestPrefix, args)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := &config.Config{
		HTTPAddr:           "127.0.0.1:0",
		CallTimeout:        time.Second,
		SchedulerWorkers:   1,
		SchedulerQueue:     1,
		ShutdownTimeout:    2 * time.Second,
		HealthCheckTimeout: time.Second,
		EnableBuiltinTools: true,
		BootstrapFile:      "",
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("%s - Serve returned %v", serverTestPrefix, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - Serve did not return after cancel", serverTestPrefix)
	}
}
