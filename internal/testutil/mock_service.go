// Package testutil provides a scripted analysis service for tests: a
// RoundTripper that plays back configured responses and records what was
// sent, plus helpers for building stream fixtures.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Step is one scripted response. Body is replayed from text, so a step can
// serve repeated attempts; Stream takes precedence and hands the test a
// live body it controls, which is consumed once.
type Step struct {
	Status int
	Header http.Header
	Body   string
	Stream io.ReadCloser
	Err    error
}

// RecordedRequest captures one request for assertions.
type RecordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// MockService scripts the analysis endpoint. It implements
// http.RoundTripper: each request consumes the next step, and the last
// step repeats once the script runs dry.
type MockService struct {
	mu   sync.Mutex
	next int

	// Steps played back in order.
	Steps []Step

	// OnRequest overrides scripted playback entirely when set.
	OnRequest func(*http.Request) (*http.Response, error)

	// Requests records every call in order.
	Requests []RecordedRequest
}

// RoundTrip implements http.RoundTripper.
func (m *MockService) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := RecordedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
	}
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		req.Body.Close()
		rec.Body = data
	}

	m.mu.Lock()
	m.Requests = append(m.Requests, rec)
	call := len(m.Requests)
	var step Step
	ok := len(m.Steps) > 0
	if ok {
		if m.next >= len(m.Steps) {
			step = m.Steps[len(m.Steps)-1]
		} else {
			step = m.Steps[m.next]
			m.next++
		}
	}
	m.mu.Unlock()

	if m.OnRequest != nil {
		return m.OnRequest(req)
	}
	if !ok {
		return nil, fmt.Errorf("no scripted step for request %d", call)
	}
	if step.Err != nil {
		return nil, step.Err
	}

	body := step.Stream
	if body == nil {
		body = io.NopCloser(strings.NewReader(step.Body))
	}
	status := step.Status
	if status == 0 {
		status = http.StatusOK
	}
	header := step.Header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     header,
		Body:       body,
		Request:    req,
	}, nil
}

// Calls returns how many requests were served so far.
func (m *MockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// Request returns a copy of the i-th recorded request.
func (m *MockService) Request(i int) RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Requests[i]
}

// OKStream builds a 200 step whose body is the given stream lines.
func OKStream(lines ...string) Step {
	return Step{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:   strings.Join(lines, ""),
	}
}

// StatusStep builds a plain non-stream response.
func StatusStep(status int, body string) Step {
	return Step{Status: status, Body: body}
}

// HeldStream builds a 200 step whose body the test feeds through the
// returned writer. Closing the writer ends the stream.
func HeldStream() (Step, *io.PipeWriter) {
	r, w := io.Pipe()
	step := Step{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"text/event-stream"}},
		Stream: r,
	}
	return step, w
}

// Frame formats one progress frame line.
func Frame(stage string, progress int, message string) string {
	return fmt.Sprintf("data: {\"stage\":%q,\"progress\":%d,\"message\":%q}\n", stage, progress, message)
}

// CompleteFrame formats the terminal success frame carrying its payload.
func CompleteFrame(progress int, message, data string) string {
	return fmt.Sprintf("data: {\"stage\":\"complete\",\"progress\":%d,\"message\":%q,\"data\":%s}\n", progress, message, data)
}

// ErrorFrame formats the terminal error frame.
func ErrorFrame(message string) string {
	return fmt.Sprintf("data: {\"stage\":\"error\",\"progress\":0,\"message\":%q}\n", message)
}

// NewSSEServer starts an httptest server that streams each line with a
// flush, pausing delay between lines. The caller owns Close.
func NewSSEServer(lines []string, delay time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			if _, err := io.WriteString(w, line); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			if delay > 0 {
				select {
				case <-r.Context().Done():
					return
				case <-time.After(delay):
				}
			}
		}
	}))
}
