// Package jsonrpc is a JSON-RPC 2.0 client over HTTP.
//
// Calls are retried with exponential backoff on transport failures, rate
// limiting and server errors. Results are returned as gjson values so callers
// can pick out the fields they need without declaring full response types.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Version is the protocol version sent with every request.
const Version = "2.0"

// MaxResponseSize bounds the body read from a single response.
const MaxResponseSize = 64 << 20

// DefaultRetryTimeout bounds the total time spent retrying one call.
const DefaultRetryTimeout = 15 * time.Second

// ErrMalformedResponse indicates the server replied with something that is not
// a JSON-RPC response.
var ErrMalformedResponse = errors.New("jsonrpc: malformed response")

// Error is an error object returned by the server.
type Error struct {
	Code    int
	Message string
	// Data is the raw JSON of the optional data member.
	Data string
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: error %d: %s", e.Code, e.Message)
}

// StatusError is a non-2xx HTTP reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("jsonrpc: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("jsonrpc: http status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Option configures a Client.
type Option func(*Client)

// Client calls a single JSON-RPC endpoint.
type Client struct {
	endpoint     string
	httpClient   *http.Client
	token        string
	userAgent    string
	retryTimeout time.Duration
	logger       *slog.Logger
}

// New creates a client for endpoint, which must be an http or https URL.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("jsonrpc: endpoint %q must be an http(s) URL", endpoint)
	}
	c := &Client{
		endpoint:     u.String(),
		httpClient:   http.DefaultClient,
		retryTimeout: DefaultRetryTimeout,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBearerToken sends token in the Authorization header.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRetryTimeout bounds the time spent retrying one call.
// Zero disables retries.
func WithRetryTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.retryTimeout = d
	}
}

// WithLogger sets the logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Endpoint returns the URL the client calls.
func (c *Client) Endpoint() string { return c.endpoint }

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Call invokes method with params and returns the result member.
// A null or absent result is returned as a gjson.Result of type Null.
func (c *Client) Call(ctx context.Context, method string, params any) (gjson.Result, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = c.retryTimeout

	var policy backoff.BackOff = backoff.WithContext(b, ctx)
	if c.retryTimeout <= 0 {
		policy = backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	return backoff.RetryNotifyWithData(
		func() (gjson.Result, error) {
			res, err := c.call(ctx, method, params)
			if err != nil && !retryable(ctx, err) {
				return res, backoff.Permanent(err)
			}
			return res, err
		},
		policy,
		func(err error, next time.Duration) {
			c.logger.Debug("retrying rpc call", "method", method, "error", err, "next", next)
		},
	)
}

func (c *Client) call(ctx context.Context, method string, params any) (gjson.Result, error) {
	id := uuid.NewString()
	body, err := json.Marshal(request{JSONRPC: Version, ID: id, Method: method, Params: params})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("jsonrpc: encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("jsonrpc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, &transportError{fmt.Errorf("jsonrpc: %s: %w", method, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return gjson.Result{}, &transportError{fmt.Errorf("jsonrpc: read %s response: %w", method, err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 256)}
	}

	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%w: %s returned invalid JSON", ErrMalformedResponse, method)
	}
	msg := gjson.ParseBytes(data)
	if got := msg.Get("id"); got.Exists() && got.String() != id {
		return gjson.Result{}, fmt.Errorf("%w: response id %q does not match request %q", ErrMalformedResponse, got.String(), id)
	}
	if e := msg.Get("error"); e.Exists() && e.Type != gjson.Null {
		return gjson.Result{}, &Error{
			Code:    int(e.Get("code").Int()),
			Message: e.Get("message").String(),
			Data:    e.Get("data").Raw,
		}
	}
	return msg.Get("result"), nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var transportErr *transportError
	return errors.As(err, &transportErr)
}

// transportError marks a failure to exchange a request and response.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
