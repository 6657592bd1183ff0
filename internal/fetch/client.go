// Package fetch wraps outbound calls to the dashboard backend so that every
// call resolves to either live data or a caller-supplied fallback.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds every request and probe.
	DefaultTimeout = 5 * time.Second
	// DefaultProbeInterval is the connectivity probe period.
	DefaultProbeInterval = 30 * time.Second

	maxBodyBytes = 8 << 20
)

// Config is static facade configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client performs single-attempt, timeout-bounded requests against the
// backend. It never retries.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
	metrics *Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for fallback notices.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records outcomes and probes.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient constructs a Client. A non-positive timeout selects
// DefaultTimeout.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-request deadline.
func (c *Client) Timeout() time.Duration {
	if c == nil {
		return DefaultTimeout
	}
	return c.timeout
}

// Request describes one outbound call. Body, when set, is JSON encoded.
type Request struct {
	Method string
	Header http.Header
	Body   any
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// Send performs one request bounded by the client timeout. On a 2xx response
// the "data" member of the response envelope, or the whole body when there is
// no envelope, is decoded into out. Failures are returned as *Error.
func (c *Client) Send(ctx context.Context, endpoint string, req Request, out any) (int, error) {
	if c == nil || c.baseURL == "" {
		return 0, &Error{Cause: CauseNotAttempted, Endpoint: endpoint, Err: errors.New("backend not configured")}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return 0, &Error{Cause: CauseNotAttempted, Endpoint: endpoint, Err: fmt.Errorf("marshal request: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return 0, &Error{Cause: CauseNotAttempted, Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, &Error{Cause: classifyTransport(err), Endpoint: endpoint, Err: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &Error{Cause: CauseHTTPStatus, Status: resp.StatusCode, Endpoint: endpoint, Err: errors.New(readErrorBody(resp))}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, &Error{Cause: classifyTransport(err), Status: resp.StatusCode, Endpoint: endpoint, Err: err}
	}
	if err := decodeEnvelope(raw, out); err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			fe.Status = resp.StatusCode
			fe.Endpoint = endpoint
			return resp.StatusCode, fe
		}
		return resp.StatusCode, &Error{Cause: CauseDecode, Status: resp.StatusCode, Endpoint: endpoint, Err: err}
	}
	return resp.StatusCode, nil
}

func decodeEnvelope(raw []byte, out any) error {
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && (env.Success != nil || env.Data != nil) {
		if env.Success != nil && !*env.Success {
			msg := env.Error
			if msg == "" {
				msg = env.Message
			}
			return &Error{Cause: CauseRejected, Err: fmt.Errorf("backend rejected request: %s", msg)}
		}
		if env.Data == nil {
			return json.Unmarshal(raw, out)
		}
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(raw, out)
}

// Call performs the request and never fails: a 2xx response yields a live
// outcome, anything else yields fallback tagged with the failure cause.
func Call[T any](ctx context.Context, c *Client, endpoint string, req Request, fallback T) Outcome[T] {
	var data T
	status, err := c.Send(ctx, endpoint, req, &data)
	if err == nil {
		c.observe(endpoint, SourceLive, CauseNone)
		return Outcome[T]{Source: SourceLive, Cause: CauseNone, Status: status, Data: data}
	}
	cause := CauseOf(err)
	c.observe(endpoint, SourceFallback, cause)
	if c != nil && c.logger != nil {
		c.logger.Info("backend call failed, using demo data",
			slog.String("endpoint", endpoint),
			slog.String("cause", string(cause)),
			slog.Any("error", err),
		)
	}
	return Outcome[T]{
		Source:  SourceFallback,
		Cause:   cause,
		Status:  status,
		Data:    fallback,
		Message: DemoDataMessage,
		Err:     err,
	}
}

// Probe issues a GET against endpoint with the client timeout and reports
// whether a 2xx response came back.
func (c *Client) Probe(ctx context.Context, endpoint string) bool {
	_, err := c.Send(ctx, endpoint, Request{Method: http.MethodGet}, nil)
	ok := err == nil
	if c != nil {
		c.metrics.observeProbe(ok)
		if !ok && c.logger != nil {
			c.logger.Debug("backend probe failed", slog.String("endpoint", endpoint), slog.Any("error", err))
		}
	}
	return ok
}

func (c *Client) observe(endpoint string, source Source, cause Cause) {
	if c == nil {
		return
	}
	c.metrics.observeCall(endpoint, source, cause)
}

func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxBodyBytes))
	_ = r.Close()
}

func readErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
}
