package service

import (
	"context"

	"github.com/sakya-app/sakya/models"
)

// IdentityService is the account, device, and session layer of the relay
// server. It never sees key material beyond device public keys; possession
// of a magic link token is the only login credential.
type IdentityService interface {
	// RequestMagicLink mints a single-use login token for email and
	// persists its hash. The raw token is returned to the caller for
	// delivery; it is never stored.
	//
	// Fails with [ErrInvalidEmail] on a malformed address and
	// [ErrRateLimited] when the address exhausted its budget for the
	// current window.
	RequestMagicLink(ctx context.Context, email string) (string, error)

	// VerifyMagicLink redeems a raw token, creating the account on first
	// login, registers the presenting device under it, and issues a
	// session token bound to (account, device).
	//
	// Fails with [ErrInvalidMagicLink] for unknown or already-consumed
	// tokens and [ErrMagicLinkExpired] for expired ones.
	VerifyMagicLink(ctx context.Context, rawToken string, device models.Device) (models.Account, models.SessionToken, error)

	// RegisterDevice adds a provisioned device to an existing account,
	// used after pairing transfers keys out of band.
	RegisterDevice(ctx context.Context, accountID string, device models.Device) (models.Device, error)

	// ListDevices returns every device of the account.
	ListDevices(ctx context.Context, accountID string) ([]models.Device, error)

	// RemoveDevice revokes one device's access. The server cannot rotate
	// document keys on the removed device's behalf; clients do that.
	RemoveDevice(ctx context.Context, accountID, deviceID string) error

	// TouchDevice stamps the device's last_seen after a successful relay
	// authentication.
	TouchDevice(ctx context.Context, accountID, deviceID string) error

	// ValidateSession parses and verifies a signed session token, returning
	// the token with its claims.
	ValidateSession(ctx context.Context, signedToken string) (models.SessionToken, error)
}
