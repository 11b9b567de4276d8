package models

import "time"

// MagicLink is a single-use, time-boxed login token bound to an email. The
// token itself is never stored; only its SHA-256 hash is persisted, so a
// database leak does not yield redeemable tokens.
//
// A magic link is not tied to an existing account: verifying one for a new
// email creates the account.
type MagicLink struct {
	// ID is the row identifier (UUID).
	ID string `json:"-"`

	// Email the link was requested for.
	Email string `json:"email"`

	// TokenHash is the hex-encoded SHA-256 hash of the raw token.
	TokenHash string `json:"-"`

	// ExpiresAt is the wall-clock moment past which verification fails.
	ExpiresAt time.Time `json:"expires_at"`

	// Used marks a consumed link. Verification succeeds at most once.
	Used bool `json:"-"`

	// CreatedAt is when the link was requested. Rate limiting counts
	// recent rows per email by this column.
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the name of the database table associated with the
// MagicLink model.
func (m MagicLink) TableName() string {
	return "magic_links"
}
