package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/michaelbrown/gauntlet/internal/metrics"
)

// Client talks to a Piston-compatible execution engine over HTTP.
type Client struct {
	runtimesURL string
	executeURL  string
	http        *http.Client
	decode      DecodeOptions
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every engine round trip, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

// WithDecodeOptions sets how strictly execute responses are decoded.
func WithDecodeOptions(o DecodeOptions) Option {
	return func(c *Client) { c.decode = o }
}

// NewClient creates a client for the given runtime-listing and execute endpoints.
func NewClient(runtimesURL, executeURL string, opts ...Option) *Client {
	c := &Client{
		runtimesURL: runtimesURL,
		executeURL:  executeURL,
		http:        &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Runtimes fetches the engine's list of installed runtimes.
func (c *Client) Runtimes(ctx context.Context) ([]Runtime, error) {
	start := time.Now()
	runtimes, err := c.runtimes(ctx)
	observe("runtimes", start, err)
	return runtimes, err
}

func (c *Client) runtimes(ctx context.Context) ([]Runtime, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.runtimesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, unreachable("fetching runtimes", err)
	}
	return DecodeRuntimes(body)
}

// Execute submits a program to the engine. The response body is decoded as
// either a success or an engine-reported error.
func (c *Client) Execute(ctx context.Context, er ExecuteRequest) (*Execution, error) {
	start := time.Now()
	exec, err := c.execute(ctx, er)
	observe("execute", start, err)
	return exec, err
}

func (c *Client) execute(ctx context.Context, er ExecuteRequest) (*Execution, error) {
	payload, err := json.Marshal(er)
	if err != nil {
		return nil, fmt.Errorf("marshaling execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.executeURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, unreachable("executing code", err)
	}
	return DecodeExecution(body, c.decode)
}

// do performs the round trip and reads the body. The status code is not
// inspected: error responses carry a JSON message that the decoder handles.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func observe(endpoint string, start time.Time, err error) {
	metrics.EngineLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.EngineRequests.WithLabelValues(endpoint, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case errors.Is(err, ErrReported):
		return "reported"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	default:
		return "error"
	}
}
