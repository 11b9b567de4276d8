package service

import "errors"

var (
	// ErrInvalidEmail is returned when a magic link is requested for an
	// empty or malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrRateLimited is returned when an email has exhausted its magic
	// link budget for the current window.
	ErrRateLimited = errors.New("too many magic link requests")

	// ErrInvalidMagicLink is returned when a presented magic link token
	// does not match an unconsumed link. Unknown and already-used tokens
	// are indistinguishable to the caller.
	ErrInvalidMagicLink = errors.New("invalid magic link token")

	// ErrMagicLinkExpired is returned when the token matches a link whose
	// validity window has passed.
	ErrMagicLinkExpired = errors.New("magic link token is expired")

	// ErrInvalidDeviceData is returned when a device registration is
	// missing its id, name, or public key.
	ErrInvalidDeviceData = errors.New("invalid device data provided")
)
