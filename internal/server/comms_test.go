package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/opspawn/agentkit/pkg/catalogue"
	"github.com/opspawn/agentkit/pkg/commsutil"
	"github.com/opspawn/agentkit/pkg/dispatcher"
	"github.com/opspawn/agentkit/pkg/message"
)

const commsTestPrefix = "server:comms_test"

func startCommsServer(t *testing.T, port int) *comms.Conn {
	t.Helper()
	ns, err := commsserver.NewServer(&commsserver.Options{Host: "127.0.0.1", Port: port, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", commsTestPrefix, err)
	}
	go ns.Start()
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", commsTestPrefix)
	}
	nc, err := commsutil.Connect(commsutil.ConnectParams{URL: ns.ClientURL(), Name: "agentkit-test"})
	if err != nil {
		t.Fatalf("%s - connect: %v", commsTestPrefix, err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func request(t *testing.T, nc *comms.Conn, subject string, payload []byte) dispatcher.RunResponse {
	t.Helper()
	reply, err := nc.Request(subject, payload, 5*time.Second)
	if err != nil {
		t.Fatalf("%s - request %s: %v", commsTestPrefix, subject, err)
	}
	var resp dispatcher.RunResponse
	if err := json.Unmarshal(reply.Data, &resp); err != nil {
		t.Fatalf("%s - decode reply %s: %v", commsTestPrefix, reply.Data, err)
	}
	if resp.Outcome == nil {
		t.Fatalf("%s - reply without outcome: %s", commsTestPrefix, reply.Data)
	}
	return resp
}

func TestCommsRunTransport(t *testing.T) {
	nc := startCommsServer(t, 14250)
	env := newTestEnv(t, func(p *Params) { p.Comms = nc })
	id := env.registerAgent(t, "planner", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := env.srv.subscribe(ctx); err != nil {
		t.Fatalf("%s - subscribe: %v", commsTestPrefix, err)
	}
	defer env.srv.unsubscribe()

	echo := message.New("caller", message.KindToolInvocation, map[string]any{
		"tool_name": "echo",
		"arguments": map[string]any{"x": 1},
	})

	t.Run("run request envelope", func(t *testing.T) {
		data, _ := json.Marshal(dispatcher.RunRequest{ID: "req-1", AgentID: id, Message: echo})
		resp := request(t, nc, "agentkit.run", data)
		if resp.ID != "req-1" || resp.Status != dispatcher.StatusSuccess {
			t.Errorf("%s - response = %+v", commsTestPrefix, resp)
		}
		result, _ := resp.Payload.(map[string]any)
		if result["result"] != "Executed with {'x': 1}" {
			t.Errorf("%s - payload = %v", commsTestPrefix, resp.Payload)
		}
	})

	t.Run("per-agent subject", func(t *testing.T) {
		data, _ := json.Marshal(echo)
		resp := request(t, nc, commsutil.BuildAgentRunSubject(id), data)
		if resp.Status != dispatcher.StatusSuccess {
			t.Errorf("%s - response = %+v", commsTestPrefix, resp.Outcome)
		}
	})

	t.Run("unknown agent", func(t *testing.T) {
		data, _ := json.Marshal(dispatcher.RunRequest{AgentID: "missing", Message: echo})
		resp := request(t, nc, "agentkit.run", data)
		if resp.ErrorCode != dispatcher.ErrAgentNotFound {
			t.Errorf("%s - error_code = %q", commsTestPrefix, resp.ErrorCode)
		}
	})

	t.Run("undecodable request", func(t *testing.T) {
		resp := request(t, nc, "agentkit.run", []byte("{not json"))
		if resp.ErrorCode != dispatcher.ErrInvalidRequest {
			t.Errorf("%s - error_code = %q", commsTestPrefix, resp.ErrorCode)
		}
	})

	t.Run("invalid message", func(t *testing.T) {
		resp := request(t, nc, commsutil.BuildAgentRunSubject(id), []byte(`{"messageType":"chat"}`))
		if resp.ErrorCode != dispatcher.ErrInvalidRequest {
			t.Errorf("%s - error_code = %q", commsTestPrefix, resp.ErrorCode)
		}
	})
}

func TestCommsRunTransport_ConcurrentRequests(t *testing.T) {
	const (
		callers = 4
		delay   = 500 * time.Millisecond
	)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer slow.Close()

	nc := startCommsServer(t, 14251)
	env := newTestEnv(t, func(p *Params) { p.Comms = nc })
	id := env.registerAgent(t, "planner", "")
	if err := env.cat.RegisterRemote(catalogue.Definition{Name: "slow_lookup"}, slow.URL); err != nil {
		t.Fatalf("%s - RegisterRemote: %v", commsTestPrefix, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := env.srv.subscribe(ctx); err != nil {
		t.Fatalf("%s - subscribe: %v", commsTestPrefix, err)
	}
	defer env.srv.unsubscribe()

	call := message.New("caller", message.KindToolInvocation, map[string]any{"tool_name": "slow_lookup"})

	var wg sync.WaitGroup
	replies := make([]dispatcher.RunResponse, callers)
	errs := make([]error, callers)
	start := time.Now()
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			subject, data := "agentkit.run", []byte(nil)
			if i%2 == 0 {
				data, _ = json.Marshal(dispatcher.RunRequest{AgentID: id, Message: call})
			} else {
				subject = commsutil.BuildAgentRunSubject(id)
				data, _ = json.Marshal(call)
			}
			reply, err := nc.Request(subject, data, 5*time.Second)
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = json.Unmarshal(reply.Data, &replies[i])
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	for i := range replies {
		if errs[i] != nil {
			t.Fatalf("%s - caller %d: %v", commsTestPrefix, i, errs[i])
		}
		if replies[i].Outcome == nil || replies[i].Status != dispatcher.StatusSuccess {
			t.Errorf("%s - caller %d reply = %+v", commsTestPrefix, i, replies[i])
		}
	}
	if elapsed >= 3*delay {
		t.Errorf("%s - %d concurrent calls took %s, want about %s", commsTestPrefix, callers, elapsed, delay)
	}
}

func TestHandleRunRequest_StampsMissingTimestamp(t *testing.T) {
	received := make(chan map[string]any, 1)
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer callback.Close()

	env := newTestEnv(t, nil)
	id := env.registerAgent(t, "listener", callback.URL)

	before := time.Now().UTC().Add(-time.Second)
	raw := []byte(`{"agentId":"` + id + `","message":{"senderId":"caller","messageType":"chat","payload":{"a":1}}}`)
	resp := env.srv.handleRunRequest(context.Background(), raw)
	if resp.Status != dispatcher.StatusAccepted {
		t.Fatalf("%s - outcome = %+v", commsTestPrefix, resp.Outcome)
	}

	select {
	case body := <-received:
		stamp, _ := body["timestamp"].(string)
		ts, err := time.Parse(time.RFC3339Nano, stamp)
		if err != nil {
			t.Fatalf("%s - forwarded timestamp %q: %v", commsTestPrefix, stamp, err)
		}
		if ts.Before(before) {
			t.Errorf("%s - forwarded timestamp = %s, want the receive time", commsTestPrefix, ts)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - callback was not invoked", commsTestPrefix)
	}
}
