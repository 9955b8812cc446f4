// Package session holds the short-lived credential used to authenticate
// analysis requests. The store is the single source of truth: components
// read it at request time and never cache a token beyond one attempt.
package session

import (
	"sync"
	"time"

	"github.com/ruleforge/ruleforge-go/core"
)

// Sink receives credential lifecycle notifications, typically to mirror the
// token into local persistence. A nil credential means the store was cleared.
type Sink interface {
	CredentialChanged(*core.Credential)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(*core.Credential)

func (f SinkFunc) CredentialChanged(c *core.Credential) { f(c) }

// Store guards the current credential. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	cred *core.Credential
	sink Sink
	now  func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSink attaches a persistence sink notified on Set and Clear.
func WithSink(s Sink) StoreOption {
	return func(st *Store) { st.sink = s }
}

// WithClock overrides the expiry clock.
func WithClock(now func() time.Time) StoreOption {
	return func(st *Store) {
		if now != nil {
			st.now = now
		}
	}
}

// NewStore returns an empty credential store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a copy of the current credential, or nil when none is held.
// An expired credential is cleared before returning nil, so callers never
// observe a stale token.
func (s *Store) Get() *core.Credential {
	s.mu.Lock()
	if s.cred == nil {
		s.mu.Unlock()
		return nil
	}
	if !s.cred.Valid(s.now()) {
		s.cred = nil
		sink := s.sink
		s.mu.Unlock()
		if sink != nil {
			sink.CredentialChanged(nil)
		}
		return nil
	}
	cred := *s.cred
	s.mu.Unlock()
	return &cred
}

// Set replaces the current credential and notifies the sink.
func (s *Store) Set(cred core.Credential) {
	s.mu.Lock()
	c := cred
	s.cred = &c
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		notify := cred
		sink.CredentialChanged(&notify)
	}
}

// Clear removes the credential, used after an authentication failure or an
// explicit logout. The sink is notified only when a credential was held.
func (s *Store) Clear() {
	s.mu.Lock()
	had := s.cred != nil
	s.cred = nil
	sink := s.sink
	s.mu.Unlock()
	if had && sink != nil {
		sink.CredentialChanged(nil)
	}
}
