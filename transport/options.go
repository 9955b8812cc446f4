package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/ruleforge/ruleforge-go/session"
)

// Option configures the transport client.
type Option func(*options)

type options struct {
	baseURL    string
	store      *session.Store
	httpClient *http.Client
	headers    map[string]string
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	sleep      func(context.Context, time.Duration) error
	warnf      func(format string, args ...any)
}

func defaultOptions() options {
	return options{
		baseURL:    "https://api.ruleforge.dev",
		headers:    map[string]string{},
		maxRetries: 2,
		baseDelay:  time.Second,
		timeout:    30 * time.Minute,
		warnf:      func(string, ...any) {},
	}
}

// WithBaseURL points the client at an analysis service.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithStore attaches the credential store consulted on every attempt.
func WithStore(store *session.Store) Option {
	return func(o *options) { o.store = store }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[key] = value
	}
}

// WithMaxRetries bounds recovery attempts beyond the first request.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithBaseDelay sets the backoff unit for 429 and 5xx retries.
func WithBaseDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.baseDelay = d
		}
	}
}

// WithTimeout bounds the whole exchange including the streamed body.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithSleep overrides how retry delays are waited out.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(o *options) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithWarnFunc routes retry diagnostics. The default discards them.
func WithWarnFunc(fn func(format string, args ...any)) Option {
	return func(o *options) {
		if fn != nil {
			o.warnf = fn
		}
	}
}
