// Package prefs is a small file-backed mirror for state that should survive
// process restarts: the active session credential plus the CLI's last-used
// provider, model and theme.
//
// Values live in memory and every mutation is flushed to disk through a temp
// file and an atomic rename, so a crash mid-write never leaves a truncated
// file behind. The file can hold a session token, so it is written with 0600
// permissions.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ruleforge/ruleforge-go/core"
)

// Well-known keys used by the CLI.
const (
	KeyProvider = "provider"
	KeyModel    = "model"
	KeyTheme    = "theme"
)

// keySession holds the mirrored credential; access goes through the typed
// Credential helpers rather than Get/Set.
const keySession = "session"

// Store is a file-backed preference store. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]json.RawMessage
	warnf  func(format string, args ...any)
}

// Option adjusts store behavior.
type Option func(*Store)

// WithWarnFunc routes non-fatal persistence warnings, such as a failed
// mirror write from a credential change, to fn instead of dropping them.
func WithWarnFunc(fn func(format string, args ...any)) Option {
	return func(s *Store) {
		if fn != nil {
			s.warnf = fn
		}
	}
}

// Open loads the preference file at path. A missing file yields an empty
// store; the file itself is only created on the first mutation.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("prefs path is empty")
	}
	s := &Store{
		path:   path,
		values: make(map[string]json.RawMessage),
		warnf:  func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read prefs file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("decode prefs file %s: %w", path, err)
	}
	return s, nil
}

// DefaultPath returns the conventional prefs location under the user config
// directory, typically ~/.config/ruleforge/prefs.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "ruleforge", "prefs.json"), nil
}

// Path returns the file backing this store.
func (s *Store) Path() string {
	return s.path
}

// Get returns the string value stored under key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// Set stores a string value under key and persists the change.
func (s *Store) Set(key, value string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode pref %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = data
	return s.persistLocked()
}

// Delete removes key and persists the change. Deleting an absent key is a
// no-op and does not touch the file.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.persistLocked()
}

// Credential returns the mirrored session credential, or nil when none is
// stored or the stored value cannot be decoded.
func (s *Store) Credential() *core.Credential {
	s.mu.Lock()
	raw, ok := s.values[keySession]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	var cred core.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		s.warnf("prefs: decode stored credential: %v", err)
		return nil
	}
	return &cred
}

// CredentialChanged mirrors the active credential to disk on every change
// and removes it when the session is cleared, so a later process can resume
// without re-authenticating. It satisfies the session store's sink interface;
// persistence failures are reported through the warn func because the sink
// contract has no error channel.
func (s *Store) CredentialChanged(cred *core.Credential) {
	s.mu.Lock()
	if cred == nil {
		delete(s.values, keySession)
	} else {
		data, err := json.Marshal(cred)
		if err != nil {
			s.mu.Unlock()
			s.warnf("prefs: encode credential: %v", err)
			return
		}
		s.values[keySession] = data
	}
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		s.warnf("prefs: persist credential: %v", err)
	}
}

func (s *Store) persistLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("create temp prefs file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp prefs file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp prefs file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp prefs file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace prefs file: %w", err)
	}
	return nil
}
