// Package transport provides the HTTP client executors use to reach the
// server. It owns connection reuse, auth headers, and the raw
// request/response cycle; interpreting status codes into outcomes is the
// executor's concern.
//
// Usage:
//
//	c := transport.New("https://api.example.com",
//	    transport.WithToken("tk_..."),
//	)
//	meta, body, err := c.Post(ctx, "/v1/messages", payload)
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/courier/batch"
)

// defaultTimeout bounds a single request when the caller's context
// carries no deadline of its own.
const defaultTimeout = 30 * time.Second

// maxBodyBytes caps how much of a response body is read into memory.
const maxBodyBytes = 32 << 20 // 32 MiB

// Meta carries the response metadata alongside the raw body.
type Meta struct {
	Status  int
	Headers http.Header
}

// RetryAfter returns the parsed Retry-After header, if present and valid.
// Only the delay-seconds form is supported.
func (m *Meta) RetryAfter() (time.Duration, bool) {
	v := m.Headers.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpc = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client is an HTTP client bound to one server base URL.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	httpc     *http.Client
	logger    *slog.Logger
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "courier/1.0",
		httpc:     &http.Client{Timeout: defaultTimeout},
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Meta, []byte, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*Meta, []byte, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body []byte) (*Meta, []byte, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Do issues a request and reads the full response body. A non-2xx status
// is not an error here: the Meta carries the status and the executor
// decides what it means for the job.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*Meta, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: build request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("transport: read response body: %w", err)
	}

	c.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	return &Meta{Status: resp.StatusCode, Headers: resp.Header}, data, nil
}

// PostBatch issues a POST whose reply is a batch payload, and decodes it
// against the ordered expected list. Transport and whole-batch parse
// failures both return an error; per-element body mismatches surface on
// the decoded sub-responses.
func (c *Client) PostBatch(ctx context.Context, path string, body []byte, expected []batch.Expected) (*Meta, *batch.Response, error) {
	meta, data, err := c.Post(ctx, path, body)
	if err != nil {
		return nil, nil, err
	}

	decoded, err := batch.Parse(data, expected)
	if err != nil {
		return meta, nil, err
	}
	return meta, decoded, nil
}
