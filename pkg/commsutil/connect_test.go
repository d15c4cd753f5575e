package commsutil

import (
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
)

const connectTestPrefix = "commsutil:connect_test"

func TestConnect_InvalidURL(t *testing.T) {
	nc, err := Connect(ConnectParams{URL: "invalid://not-a-nats-server", Name: "test-client", MaxReconnects: 1, Timeout: time.Second})
	if err == nil {
		if nc != nil {
			nc.Close()
		}
		t.Fatalf("%s - expected error for invalid URL", connectTestPrefix)
	}
	if nc != nil {
		t.Errorf("%s - expected nil connection on error", connectTestPrefix)
	}
}

func TestConnect_InProcessServer(t *testing.T) {
	ns, err := commsserver.NewServer(&commsserver.Options{Host: "127.0.0.1", Port: 14240, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", connectTestPrefix, err)
	}
	go ns.Start()
	defer func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	}()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", connectTestPrefix)
	}

	nc, err := Connect(ConnectParams{URL: ns.ClientURL(), Name: "agentkit-test"})
	if err != nil {
		t.Fatalf("%s - connect: %v", connectTestPrefix, err)
	}
	if !Healthy(nc) {
		t.Errorf("%s - expected healthy connection", connectTestPrefix)
	}
	nc.Close()
	if Healthy(nc) {
		t.Errorf("%s - closed connection reported healthy", connectTestPrefix)
	}
	if Healthy(nil) {
		t.Errorf("%s - nil connection reported healthy", connectTestPrefix)
	}
}
