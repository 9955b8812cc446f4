package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Options controls the HTTP client construction used by the transport layer.
type Options struct {
	// Timeout bounds the whole exchange including the body read. Analyses
	// legitimately stream for many minutes, so the default is long; a
	// stalled stream is ended by this or by explicit cancellation.
	Timeout               time.Duration
	ResponseHeaderTimeout time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	DisableCompression    bool
	Transport             http.RoundTripper
}

// Option mutates Options.
type Option func(*Options)

// WithTimeout sets the overall exchange timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithResponseHeaderTimeout bounds the wait for response headers.
func WithResponseHeaderTimeout(d time.Duration) Option {
	return func(o *Options) { o.ResponseHeaderTimeout = d }
}

// WithTransport provides a custom transport overriding defaults.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *Options) { o.Transport = rt }
}

// DefaultOptions returns defaults tuned for long-lived streaming responses.
func DefaultOptions() Options {
	return Options{
		Timeout:               30 * time.Minute,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// New constructs an *http.Client configured for streaming API calls.
func New(opts ...Option) *http.Client {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	transport := options.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          options.MaxIdleConns,
			MaxIdleConnsPerHost:   options.MaxIdleConnsPerHost,
			MaxConnsPerHost:       options.MaxConnsPerHost,
			IdleConnTimeout:       options.IdleConnTimeout,
			ResponseHeaderTimeout: options.ResponseHeaderTimeout,
			TLSHandshakeTimeout:   options.TLSHandshakeTimeout,
			ExpectContinueTimeout: options.ExpectContinueTimeout,
			DisableCompression:    options.DisableCompression,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}

	return &http.Client{
		Timeout:   options.Timeout,
		Transport: transport,
	}
}
