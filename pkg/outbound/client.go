// Package outbound performs the service's outbound HTTP calls: remote tool invocations and
// deferred callback deliveries. Every call runs under a fixed timeout and every failure is
// classified exactly once.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const logPrefix = "outbound:client"

// DefaultTimeout applies when a Client is built without one.
const DefaultTimeout = 15 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// Response is a completed 2xx exchange.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Client posts JSON documents. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// NewClientParams holds parameters for NewClient.
type NewClientParams struct {
	// Timeout bounds each call end to end. Zero means DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the underlying client (tests). Nil means a dedicated client.
	HTTPClient *http.Client
}

// NewClient creates a new Client.
func NewClient(params NewClientParams) *Client {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := params.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{http: hc, timeout: timeout}
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// PostJSON encodes body and POSTs it to url. A nil error means the endpoint answered 2xx;
// every other result is a *CallError.
func (c *Client) PostJSON(ctx context.Context, url string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &CallError{Kind: FailureEncoding, URL: url, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &CallError{Kind: FailureUnreachable, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(callCtx, ctx, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	if err != nil {
		return nil, c.classify(callCtx, ctx, url, err)
	}

	slog.Debug(fmt.Sprintf("%s - POST %s -> %d in %s", logPrefix, url, resp.StatusCode, elapsed))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CallError{
			Kind:       FailureHTTPStatus,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}
	return &Response{StatusCode: resp.StatusCode, Body: data, Duration: elapsed}, nil
}

// classify maps a transport error to its failure kind. callCtx carries the call timeout,
// parent is the caller's context.
func (c *Client) classify(callCtx, parent context.Context, url string, err error) *CallError {
	if errors.Is(parent.Err(), context.Canceled) {
		return &CallError{Kind: FailureCanceled, URL: url, Err: err}
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Kind: FailureTimeout, URL: url, Timeout: c.timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &CallError{Kind: FailureTimeout, URL: url, Timeout: c.timeout, Err: err}
	}
	return &CallError{Kind: FailureUnreachable, URL: url, Err: err}
}
