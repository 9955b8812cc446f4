package core

import "time"

// Credential is a short-lived session token scoped to one upstream provider.
type Credential struct {
	Token     string    `json:"token"`
	Provider  string    `json:"provider,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the credential can authenticate a request at now.
// A zero ExpiresAt means the token carries no expiry.
func (c Credential) Valid(now time.Time) bool {
	if c.Token == "" {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}
