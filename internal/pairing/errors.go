package pairing

import "errors"

// Sentinel errors returned by the pairing protocol. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrInvalidPairingCode is returned when a pairing code cannot be
	// decoded or is missing a required field.
	ErrInvalidPairingCode = errors.New("invalid pairing code")

	// ErrSessionExpired is returned when a pairing session is used past its
	// validity window. Expiry is checked at use time, not by a background
	// sweep.
	ErrSessionExpired = errors.New("pairing session expired")

	// ErrAccountMismatch is returned when a decrypted provisioning payload
	// claims a different account than the envelope's AAD binds it to.
	ErrAccountMismatch = errors.New("provisioning payload account mismatch")
)
