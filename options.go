package ruleforge

import (
	"net/http"
	"time"

	"github.com/ruleforge/ruleforge-go/config"
	"github.com/ruleforge/ruleforge-go/session"
	"github.com/ruleforge/ruleforge-go/transport"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// ClientDefaults holds request fields applied when an Input leaves them
// empty.
type ClientDefaults struct {
	Provider string
	Model    string

	// APIKey is the raw provider key used as fallback auth when the session
	// store holds no valid credential. It is never sent alongside a session
	// token.
	APIKey string
}

// WithBaseURL points the client at an analysis service.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// WithStore attaches a credential store. NewClient creates an empty one
// otherwise. Use this to share one store between a client and login code,
// or to restore a persisted credential at startup.
func WithStore(store *session.Store) ClientOption {
	return func(c *Client) {
		if store != nil {
			c.store = store
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithMaxRetries bounds recovery attempts beyond the first request.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseDelay sets the backoff unit for rate-limit and server-error
// retries.
func WithBaseDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithTimeout bounds one whole exchange including the streamed body.
// Analyses legitimately run for many minutes; the default is generous.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDefaultProvider sets the provider used when an Input names none.
func WithDefaultProvider(provider string) ClientOption {
	return func(c *Client) { c.defaults.Provider = provider }
}

// WithDefaultModel sets the model used when an Input names none.
func WithDefaultModel(model string) ClientOption {
	return func(c *Client) { c.defaults.Model = model }
}

// WithAPIKey sets the fallback provider API key sent in the request body
// when no session credential is held.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.defaults.APIKey = key }
}

// WithEventBuffer sizes each operation's event channel.
func WithEventBuffer(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.eventBuffer = n
		}
	}
}

// WithWarnFunc routes decode and retry diagnostics, e.g. to log.Printf.
// The default discards them.
func WithWarnFunc(fn func(format string, args ...any)) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.warnf = fn
		}
	}
}

// WithTransportOptions appends options to the transport built by NewClient.
// They are applied after the client-derived ones, so they win.
func WithTransportOptions(opts ...transport.Option) ClientOption {
	return func(c *Client) {
		c.transportOpts = append(c.transportOpts, opts...)
	}
}

// WithConfig applies settings loaded from a config file: base URL, retry
// policy, timeout, default provider and model, and the fallback API key
// resolved from the configured environment variable.
func WithConfig(cfg *config.Config) ClientOption {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.TimeoutSeconds > 0 {
			c.timeout = cfg.Timeout()
		}
		if cfg.Retry.MaxRetries >= 0 {
			c.maxRetries = cfg.Retry.MaxRetries
		}
		if cfg.Retry.BaseDelayMS > 0 {
			c.baseDelay = cfg.Retry.BaseDelay()
		}
		if cfg.Provider != "" {
			c.defaults.Provider = cfg.Provider
		}
		if cfg.Model != "" {
			c.defaults.Model = cfg.Model
		}
		if key := cfg.APIKey(); key != "" {
			c.defaults.APIKey = key
		}
	}
}
