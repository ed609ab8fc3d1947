// Package transport implements the concurrency-bounded HTTP POST layer the
// oracle sends every probe document through: one JSON request per call,
// gated by a counting semaphore, retried with exponential backoff on
// transport failure.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"
)

// Config configures a Client. Zero values fall back to the defaults in
// spec.md §4.2.
type Config struct {
	URL                string
	Headers            http.Header
	MaxRetries         int
	ConcurrentRequests int
	Proxy              *url.URL
	Backoff            int
	DisableSSLVerify   bool
}

const (
	defaultMaxRetries         = 3
	defaultConcurrentRequests = 50
)

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}

	if c.ConcurrentRequests == 0 {
		c.ConcurrentRequests = defaultConcurrentRequests
	}

	return c
}

// Client is a concurrency-limited JSON POSTer. The zero value is not usable;
// construct with New. A Client is safe for concurrent use by many probe
// goroutines sharing one Oracle.
type Client struct {
	cfg Config

	sem *semaphore.Weighted

	backoffMu sync.Mutex

	once sync.Once
	http *http.Client
}

// New constructs a Client. The underlying http.Client is built lazily on the
// first Post call, matching the source's lazily-constructed session.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()

	return &Client{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.ConcurrentRequests)),
	}
}

func (c *Client) httpClient() *http.Client {
	c.once.Do(func() {
		transport := &http.Transport{}

		if c.cfg.Proxy != nil {
			transport.Proxy = http.ProxyURL(c.cfg.Proxy)
		}

		if c.cfg.DisableSSLVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in via --no-ssl
		}

		c.http = &http.Client{Transport: transport}
	})

	return c.http
}

// Response is the subset of a GraphQL HTTP response the oracle consumes:
// the error messages and, when present, the root __typename.
type Response struct {
	Errors      []string
	Typename    string
	HasTypename bool
}

// Post sends {"query": document} (or no body when document is empty) to the
// configured URL, honoring the retry/backoff contract in spec.md §4.2. It
// never returns an error for exhausted retries — callers see an empty
// Response, exactly as upstream probes expect "no error messages, therefore
// no discovery".
func (c *Client) Post(ctx context.Context, document string) (Response, error) {
	var body []byte

	if document != "" {
		var err error

		body, err = json.Marshal(map[string]string{"query": document})
		if err != nil {
			return Response{}, fmt.Errorf("marshal request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return Response{}, fmt.Errorf("acquire request slot: %w", err)
		}

		raw, err := c.attempt(ctx, body)

		c.sem.Release(1)

		if err == nil {
			return parseResponse(raw), nil
		}

		slog.Debug("transport attempt failed", "attempt", attempt, "error", err)

		if attempt >= c.cfg.MaxRetries {
			return Response{}, nil
		}

		if c.cfg.Backoff > 0 {
			c.sleepBackoff(ctx, attempt)
		}
	}
}

// sleepBackoff sleeps 0.5 * backoff^attempt seconds, serialized through a
// mutex so concurrently failing callers don't stampede the target the
// instant their permits free up (spec.md §4.2's "separate mutex" note).
func (c *Client) sleepBackoff(ctx context.Context, attempt int) {
	c.backoffMu.Lock()
	defer c.backoffMu.Unlock()

	delay := 0.5 * math.Pow(float64(c.cfg.Backoff), float64(attempt))

	timer := time.NewTimer(time.Duration(delay * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (c *Client) attempt(ctx context.Context, body []byte) ([]byte, error) {
	var reqBody *bytes.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, vs := range c.cfg.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	}

	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformedJSON
	}

	return raw, nil
}

// ErrServerError marks a 5xx response; it always triggers a retry.
var ErrServerError = errors.New("server error")

// ErrMalformedJSON marks a response body that did not parse as JSON.
var ErrMalformedJSON = errors.New("malformed json response")

// parseResponse extracts errors[*].message and data.__typename with gjson's
// tolerant path access, so a response shaped slightly differently than a
// strict introspection reply still yields whatever it does carry.
func parseResponse(raw []byte) Response {
	result := gjson.ParseBytes(raw)

	var resp Response

	for _, e := range result.Get("errors").Array() {
		if msg := e.Get("message"); msg.Exists() {
			resp.Errors = append(resp.Errors, msg.String())
		}
	}

	if tn := result.Get("data.__typename"); tn.Exists() {
		resp.HasTypename = true
		resp.Typename = tn.String()
	}

	return resp
}

// Close releases the underlying connection pool, matching the source's
// session teardown.
func (c *Client) Close() {
	if c.http != nil {
		c.http.CloseIdleConnections()
	}
}
