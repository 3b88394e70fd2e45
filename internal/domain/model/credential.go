package model

import "time"

// Credential holds the OAuth2 access/refresh token pair for the ad platform.
// Exactly one live credential exists per process; each refresh overwrites the
// previous pair. IssuedAt is stamped by the token service, never by adapters,
// so it stays monotonic non-decreasing across writes.
type Credential struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
}

// Age returns how long ago the credential was issued, relative to now.
func (c Credential) Age(now time.Time) time.Duration {
	return now.Sub(c.IssuedAt)
}
