package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode categorizes client errors.
type ErrorCode string

const (
	ErrAuthExpired      ErrorCode = "auth_expired"
	ErrRateLimited      ErrorCode = "rate_limited"
	ErrServerError      ErrorCode = "server_error"
	ErrClientError      ErrorCode = "client_error"
	ErrTransportFailure ErrorCode = "transport_failure"
	ErrStreamTruncated  ErrorCode = "stream_truncated"
	ErrAnalysisFailed   ErrorCode = "analysis_failed"
	ErrCanceled         ErrorCode = "canceled"
	ErrInternal         ErrorCode = "internal"
)

// AnalysisError provides rich context for SDK consumers.
type AnalysisError struct {
	Code       ErrorCode
	Message    string
	Status     int
	Retryable  bool
	RetryAfter time.Duration
	wrapped    error
}

func (e *AnalysisError) Error() string {
	if e == nil {
		return ""
	}
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *AnalysisError) Unwrap() error { return e.wrapped }

// WrapError creates a new AnalysisError with the provided code.
func WrapError(err error, code ErrorCode) *AnalysisError {
	if err == nil {
		return nil
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae
	}
	return &AnalysisError{Code: code, Message: err.Error(), wrapped: err}
}

// NewError builds an AnalysisError explicitly.
func NewError(code ErrorCode, message string, opts ...ErrorOption) *AnalysisError {
	e := &AnalysisError{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ErrorOption mutates an AnalysisError during construction.
type ErrorOption func(*AnalysisError)

// WithStatus sets the HTTP status code.
func WithStatus(status int) ErrorOption {
	return func(e *AnalysisError) { e.Status = status }
}

// WithRetryable marks whether retry is recommended.
func WithRetryable(retryable bool) ErrorOption {
	return func(e *AnalysisError) { e.Retryable = retryable }
}

// WithRetryAfter sets the server-provided retry delay.
func WithRetryAfter(d time.Duration) ErrorOption {
	return func(e *AnalysisError) { e.RetryAfter = d }
}

// WithWrapped attaches an underlying error.
func WithWrapped(err error) ErrorOption {
	return func(e *AnalysisError) { e.wrapped = err }
}

func classify(code ErrorCode) func(error) bool {
	return func(err error) bool {
		var ae *AnalysisError
		if err == nil {
			return false
		}
		if errors.As(err, &ae) {
			return ae.Code == code
		}
		return false
	}
}

// Helper predicates for common error handling patterns.
var (
	IsAuthExpired      = classify(ErrAuthExpired)
	IsRateLimited      = classify(ErrRateLimited)
	IsServerError      = classify(ErrServerError)
	IsClientError      = classify(ErrClientError)
	IsTransportFailure = classify(ErrTransportFailure)
	IsStreamTruncated  = classify(ErrStreamTruncated)
	IsAnalysisFailed   = classify(ErrAnalysisFailed)
	IsCanceled         = classify(ErrCanceled)
)

// GetRetryAfter extracts the retry-after hint.
func GetRetryAfter(err error) time.Duration {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.RetryAfter
	}
	return 0
}
