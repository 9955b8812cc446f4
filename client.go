// Package ruleforge is the client SDK for the RuleForge analysis service.
// It submits a URL or document for server-side threat analysis, consumes
// the incremental progress stream, and settles each run exactly once with
// a detection-rule report or a typed error.
package ruleforge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ruleforge/ruleforge-go/core"
	"github.com/ruleforge/ruleforge-go/obs"
	"github.com/ruleforge/ruleforge-go/session"
	"github.com/ruleforge/ruleforge-go/transport"
)

// Client runs analyses against the service and enforces single-flight
// semantics: at most one operation is in flight per Client. Starting a new
// analysis supersedes the previous one, which settles Canceled before the
// new operation exists. Independent Clients do not interfere.
type Client struct {
	mu      sync.Mutex
	current *Operation

	store         *session.Store
	transport     *transport.Client
	httpClient    *http.Client
	baseURL       string
	maxRetries    int
	baseDelay     time.Duration
	timeout       time.Duration
	transportOpts []transport.Option
	defaults      ClientDefaults
	eventBuffer   int
	warnf         func(format string, args ...any)
}

// NewClient builds a Client. With no options it talks to the production
// service with an empty credential store.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     "https://api.ruleforge.dev",
		maxRetries:  2,
		baseDelay:   time.Second,
		timeout:     30 * time.Minute,
		eventBuffer: 16,
		warnf:       func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = session.NewStore()
	}
	topts := []transport.Option{
		transport.WithBaseURL(c.baseURL),
		transport.WithStore(c.store),
		transport.WithMaxRetries(c.maxRetries),
		transport.WithBaseDelay(c.baseDelay),
		transport.WithTimeout(c.timeout),
		transport.WithWarnFunc(c.warnf),
	}
	if c.httpClient != nil {
		topts = append(topts, transport.WithHTTPClient(c.httpClient))
	}
	topts = append(topts, c.transportOpts...)
	c.transport = transport.New(topts...)
	return c
}

// Store returns the credential store so login code can Set and Clear
// session tokens.
func (c *Client) Store() *session.Store { return c.store }

// Start begins a new analysis and returns its Operation handle. A running
// operation is superseded first: its transport is aborted and it settles
// Canceled before the new operation is created. The input is validated
// before anything else, so an invalid input leaves a running operation
// untouched.
func (c *Client) Start(ctx context.Context, input Input) (*Operation, error) {
	treq, err := transport.NewAnalysisRequest(c.buildRequest(input))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev := c.current; prev != nil {
		prev.supersede()
	}

	id := uuid.NewString()
	opCtx, cancel := context.WithCancel(ctx)
	opCtx, recorder := obs.StartOperation(opCtx, "ruleforge.analyze",
		attribute.String("analysis.id", id),
		attribute.String("analysis.input", input.kind()),
	)
	op := &Operation{
		id:        id,
		client:    c,
		ctx:       opCtx,
		cancel:    cancel,
		startedAt: time.Now(),
		recorder:  recorder,
		status:    core.StatusRunning,
		ch:        make(chan core.ProgressEvent, c.eventBuffer),
		done:      make(chan struct{}),
	}
	c.current = op

	go op.run(treq)
	return op, nil
}

// Analyze runs one analysis to completion: Start plus Wait. Callers that
// don't need progress can treat it as a plain request.
func (c *Client) Analyze(ctx context.Context, input Input) (*core.Report, error) {
	op, err := c.Start(ctx, input)
	if err != nil {
		return nil, err
	}
	outcome, err := op.Wait(ctx)
	if err != nil {
		op.Cancel()
		return nil, err
	}
	if outcome.Err != nil {
		return nil, outcome.Err
	}
	return outcome.Report, nil
}

// Cancel aborts the in-flight operation, if any.
func (c *Client) Cancel() {
	c.mu.Lock()
	op := c.current
	c.mu.Unlock()
	if op != nil {
		op.Cancel()
	}
}

// Current returns the most recent operation, which may already have
// settled, or nil before the first Start.
func (c *Client) Current() *Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Status reports the most recent operation's state, or StatusIdle before
// the first Start.
func (c *Client) Status() core.Status {
	c.mu.Lock()
	op := c.current
	c.mu.Unlock()
	if op == nil {
		return core.StatusIdle
	}
	return op.Status()
}

// buildRequest merges the input with client defaults. The api_key rides
// along as the fallback auth mode; whether it is sent is decided per
// attempt by the transport, from the same credential read that drives the
// session header, because the two are mutually exclusive on the wire.
func (c *Client) buildRequest(input Input) core.AnalysisRequest {
	req := core.AnalysisRequest{
		InputURL: input.URL,
		Document: input.Document,
		Provider: input.Provider,
		Model:    input.Model,
	}
	if req.Provider == "" {
		req.Provider = c.defaults.Provider
	}
	if req.Model == "" {
		req.Model = c.defaults.Model
	}
	req.APIKey = input.APIKey
	if req.APIKey == "" {
		req.APIKey = c.defaults.APIKey
	}
	return req
}
