package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNewErrorOptions(t *testing.T) {
	err := NewError(ErrRateLimited, "too many requests",
		WithStatus(429),
		WithRetryable(true),
		WithRetryAfter(7*time.Second),
	)
	if err.Status != 429 || !err.Retryable {
		t.Fatalf("options not applied: %+v", err)
	}
	if got := GetRetryAfter(err); got != 7*time.Second {
		t.Fatalf("retry-after = %v, want 7s", got)
	}
}

func TestWrapErrorPreservesExisting(t *testing.T) {
	orig := NewError(ErrAuthExpired, "session expired", WithStatus(401))
	wrapped := WrapError(fmt.Errorf("request failed: %w", orig), ErrInternal)
	if wrapped.Code != ErrAuthExpired {
		t.Fatalf("expected original code preserved, got %s", wrapped.Code)
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError(nil, ErrInternal) != nil {
		t.Fatalf("expected nil for nil input")
	}
}

func TestClassifyThroughWrapping(t *testing.T) {
	base := NewError(ErrStreamTruncated, "stream ended without result")
	outer := fmt.Errorf("analysis: %w", base)
	if !IsStreamTruncated(outer) {
		t.Fatalf("expected stream-truncated classification through wrapping")
	}
	if IsServerError(outer) {
		t.Fatalf("unexpected server-error classification")
	}
	if IsStreamTruncated(errors.New("plain")) {
		t.Fatalf("plain error should not classify")
	}
	if IsCanceled(nil) {
		t.Fatalf("nil should not classify")
	}
}

func TestErrorStringIncludesWrapped(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewError(ErrTransportFailure, "stream read failed", WithWrapped(inner))
	if got := err.Error(); got != "stream read failed: connection reset" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("expected unwrap chain to reach inner error")
	}
}
