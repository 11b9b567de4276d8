package config

import "errors"

// Validation errors returned by [GetServerConfig] and [GetClientConfig]
// when the merged configuration is unusable.
var (
	// ErrInvalidAppConfigs is returned when a required application-level
	// value (e.g. the token sign key) is missing.
	ErrInvalidAppConfigs = errors.New("invalid app configs")

	// ErrInvalidServerConfigs is returned when the server listen address is
	// missing or malformed.
	ErrInvalidServerConfigs = errors.New("invalid server configs")

	// ErrInvalidStorageConfigs is returned when a store DSN is missing.
	ErrInvalidStorageConfigs = errors.New("invalid storage configs")

	// ErrInvalidClientConfigs is returned when the client server URL or
	// data directory is missing.
	ErrInvalidClientConfigs = errors.New("invalid client configs")
)
