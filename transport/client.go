// Package transport performs one logical analysis request with transparent
// recovery from rate limiting and transient server failures. Callers never
// see retry mechanics: they get a live response or a typed error.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ruleforge/ruleforge-go/core"
	"github.com/ruleforge/ruleforge-go/internal/httpclient"
	"github.com/ruleforge/ruleforge-go/obs"
)

// SessionHeader carries the short-lived session token.
const SessionHeader = "X-Session-Token"

// Request describes one logical exchange against the analysis service.
// Bodies are held as bytes so every retry attempt rebuilds a fresh reader.
type Request struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
	Header      http.Header

	// FallbackBody replaces Body on attempts that find no credential in
	// the store; it may carry auth material the session-authenticated
	// payload must not. Nil means Body is sent either way.
	FallbackBody        []byte
	FallbackContentType string

	// Stream keeps the response body open for incremental reads instead of
	// treating it as a buffered JSON payload.
	Stream bool
}

// Client issues requests with credential injection and bounded retries.
type Client struct {
	opts       options
	httpClient *http.Client
}

// New constructs a transport client.
func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = httpclient.New(httpclient.WithTimeout(o.timeout))
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	return &Client{opts: o, httpClient: o.httpClient}
}

// Do performs the request. A 401 clears the credential store and fails
// immediately; 429 and 5xx are retried up to the configured bound; any other
// non-2xx status fails with the status and a body excerpt. On success the
// response is returned with an unread body.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		switch code := resp.StatusCode; {
		case code == http.StatusUnauthorized:
			_ = drain(resp.Body)
			if c.opts.store != nil {
				c.opts.store.Clear()
			}
			return nil, core.NewError(core.ErrAuthExpired, "session expired or unauthorized", core.WithStatus(code))

		case code == http.StatusTooManyRequests:
			excerpt := drain(resp.Body)
			hint := parseRetryAfter(resp.Header.Get("Retry-After"))
			if attempt >= c.opts.maxRetries {
				errOpts := []core.ErrorOption{core.WithStatus(code), core.WithRetryable(true)}
				if hint > 0 {
					errOpts = append(errOpts, core.WithRetryAfter(hint))
				}
				return nil, core.NewError(core.ErrRateLimited,
					fmt.Sprintf("analysis service rate limited: %s: %s", resp.Status, excerpt), errOpts...)
			}
			delay := c.opts.baseDelay
			if hint > 0 {
				delay = hint
			}
			c.opts.warnf("transport: 429 on attempt %d, retrying in %s", attempt+1, delay)
			obs.RecordRetry("rate_limited")
			if err := c.opts.sleep(ctx, delay); err != nil {
				return nil, core.NewError(core.ErrCanceled, "request canceled during backoff", core.WithWrapped(err))
			}

		case code >= 500:
			excerpt := drain(resp.Body)
			if attempt >= c.opts.maxRetries {
				return nil, core.NewError(core.ErrServerError,
					fmt.Sprintf("analysis service error: %s: %s", resp.Status, excerpt),
					core.WithStatus(code), core.WithRetryable(true))
			}
			delay := c.opts.baseDelay << attempt
			c.opts.warnf("transport: %d on attempt %d, retrying in %s", code, attempt+1, delay)
			obs.RecordRetry("server_error")
			if err := c.opts.sleep(ctx, delay); err != nil {
				return nil, core.NewError(core.ErrCanceled, "request canceled during backoff", core.WithWrapped(err))
			}

		default:
			excerpt := drain(resp.Body)
			return nil, core.NewError(core.ErrClientError,
				fmt.Sprintf("analysis service rejected request: %s: %s", resp.Status, excerpt),
				core.WithStatus(code))
		}
	}
}

func (c *Client) attempt(ctx context.Context, req Request) (*http.Response, error) {
	// One store read per attempt decides both auth carriers: a held
	// credential rides the session header with the primary payload, none
	// selects the fallback payload. A token refreshed mid-retry is picked
	// up on the next attempt; one expiring mid-retry degrades to the
	// fallback instead of sending a request that authenticates nothing.
	var cred *core.Credential
	if c.opts.store != nil {
		cred = c.opts.store.Get()
	}
	payload := req.Body
	contentType := req.ContentType
	if cred == nil && req.FallbackBody != nil {
		payload = req.FallbackBody
		contentType = req.FallbackContentType
	}

	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.endpoint(req.Path), body)
	if err != nil {
		return nil, core.WrapError(err, core.ErrInternal)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Cache-Control", "no-cache")
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	for k, v := range c.opts.headers {
		httpReq.Header.Set(k, v)
	}
	if cred != nil {
		httpReq.Header.Set(SessionHeader, cred.Token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, core.NewError(core.ErrCanceled, "request canceled", core.WithWrapped(err))
		}
		return nil, core.NewError(core.ErrTransportFailure, "analysis request failed", core.WithWrapped(err))
	}
	return resp, nil
}

func (c *Client) endpoint(path string) string {
	base := strings.TrimRight(c.opts.baseURL, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// drain reads a bounded excerpt for error messages and closes the body so
// the connection can be reused.
func drain(r io.ReadCloser) string {
	defer r.Close()
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	return strings.TrimSpace(string(data))
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
