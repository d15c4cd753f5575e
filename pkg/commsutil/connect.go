// Package commsutil provides COMMS (NATS) connection helpers, subjects and the JSON codec.
package commsutil

import (
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const logPrefix = "commsutil:connect"

const (
	defaultMaxReconnects  = 60
	defaultConnectTimeout = 10 * time.Second
	reconnectWait         = 2 * time.Second
)

// ConnectParams holds parameters for Connect.
type ConnectParams struct {
	URL  string
	Name string
	// MaxReconnects; zero means 60, negative means unlimited.
	MaxReconnects int
	// Timeout for the initial dial; zero means 10s.
	Timeout time.Duration
}

func (p ConnectParams) options() []comms.Option {
	maxReconnects := p.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = defaultMaxReconnects
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	return []comms.Option{
		comms.Name(p.Name),
		comms.Timeout(timeout),
		comms.ReconnectWait(reconnectWait),
		comms.MaxReconnects(maxReconnects),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			if err != nil {
				slog.Warn(fmt.Sprintf("%s - %s disconnected: %v", logPrefix, p.Name, err))
			}
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - %s reconnected to %s", logPrefix, p.Name, nc.ConnectedUrl()))
		}),
		comms.ClosedHandler(func(_ *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - %s connection closed", logPrefix, p.Name))
		}),
	}
}

// Connect dials the COMMS server at params.URL with reconnect handling and lifecycle logging.
func Connect(params ConnectParams) (*comms.Conn, error) {
	nc, err := comms.Connect(params.URL, params.options()...)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to %s: %w", logPrefix, params.URL, err)
	}
	slog.Info(fmt.Sprintf("%s - %s connected to %s", logPrefix, params.Name, nc.ConnectedUrl()))
	return nc, nil
}

// Healthy reports whether nc is connected. A nil connection is not healthy.
func Healthy(nc *comms.Conn) bool {
	return nc != nil && nc.IsConnected()
}
