package client

import "errors"

// Sentinel errors surfaced by the identity API client, mapped from HTTP
// status codes.
var (
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("client unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrConflict            = errors.New("conflict")
	ErrInternalServerError = errors.New("internal server error")
)

// Engine and transport errors.
var (
	// ErrProjectDisabled is returned when an operation targets a project
	// sync is not enabled for.
	ErrProjectDisabled = errors.New("project sync is not enabled")

	// ErrEnvelopeMismatch is returned when an envelope's authenticated
	// associated data does not match the project it claims to belong to.
	ErrEnvelopeMismatch = errors.New("envelope is bound to a different project")

	// ErrNotConnected is returned when a send is attempted without a live
	// relay connection.
	ErrNotConnected = errors.New("not connected to relay")
)
