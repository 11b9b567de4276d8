// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package config loads the sakya configuration from environment variables,
// command-line flags, and an optional JSON file, merged in that order.
//
// The main entry points are [GetServerConfig] for the relay/identity server
// and [GetClientConfig] for the sync client.
package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container. It aggregates
// all sub-configurations and is populated by merging values from
// environment variables, command-line flags, and an optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds token parameters and the advertised server version.
	App App `envPrefix:"APP_"`

	// Storage holds the database settings for the identity and sync stores.
	Storage Storage `envPrefix:"STORAGE_"`

	// Server holds network address and timeout settings for the relay.
	Server Server `envPrefix:"SERVER_"`

	// Identity holds magic-link token policy.
	Identity Identity `envPrefix:"IDENTITY_"`

	// Client holds sync-client settings; ignored by the server.
	Client Client `envPrefix:"CLIENT_"`

	// JSONFilePath is the optional path to a JSON configuration file,
	// merged on top of env and flag values when non-empty.
	// Populated via the CONFIG environment variable or the -c/-config flag.
	JSONFilePath string `env:"CONFIG" json:"-"`
}

// App holds application-level configuration controlling session tokens and
// versioning.
type App struct {
	// TokenSignKey is the secret used to sign and verify session tokens
	// with HMAC-SHA256. Must be kept confidential.
	// Env: APP_TOKEN_SIGN_KEY
	TokenSignKey string `env:"TOKEN_SIGN_KEY" json:"token_sign_key"`

	// TokenIssuer is the "iss" claim embedded in every issued token.
	// Env: APP_TOKEN_ISSUER
	TokenIssuer string `env:"TOKEN_ISSUER" json:"token_issuer"`

	// TokenDuration is the session token lifetime. Defaults to 24h.
	// Env: APP_TOKEN_DURATION
	TokenDuration time.Duration `env:"TOKEN_DURATION" json:"token_duration"`

	// Version is the server version string advertised in AuthOk.
	// Env: APP_VERSION
	Version string `env:"VERSION" json:"version"`
}

// Storage holds database settings for the two logical stores.
type Storage struct {
	// DB holds the relational database connection settings.
	DB DB `envPrefix:"DB_" json:"db"`
}

// DB holds connection settings for the identity and sync stores. Each store
// wraps its own connection; both use the same driver.
type DB struct {
	// Driver selects the SQL driver: "sqlite3" (embedded, default) or
	// "pgx" (PostgreSQL).
	// Env: STORAGE_DB_DRIVER
	Driver string `env:"DRIVER" json:"driver"`

	// IdentityDSN is the DSN of the identity store
	// (accounts, devices, magic links).
	// Env: STORAGE_DB_IDENTITY_DSN
	IdentityDSN string `env:"IDENTITY_DSN" json:"identity_dsn"`

	// SyncDSN is the DSN of the sync store
	// (encrypted updates and snapshots).
	// Env: STORAGE_DB_SYNC_DSN
	SyncDSN string `env:"SYNC_DSN" json:"sync_dsn"`
}

// Server holds network and timeout settings for the inbound transport.
type Server struct {
	// HTTPAddress is the TCP address the server listens on, "host:port".
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS" json:"address"`

	// RequestTimeout bounds a single identity HTTP request.
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" json:"request_timeout"`

	// RoomCleanupInterval is the period of the empty-room sweep.
	// Env: SERVER_ROOM_CLEANUP_INTERVAL
	RoomCleanupInterval time.Duration `env:"ROOM_CLEANUP_INTERVAL" json:"room_cleanup_interval"`
}

// Identity holds magic-link token policy.
type Identity struct {
	// MagicLinkTTL is how long a magic-link token stays redeemable.
	// Env: IDENTITY_MAGIC_LINK_TTL
	MagicLinkTTL time.Duration `env:"MAGIC_LINK_TTL" json:"magic_link_ttl"`

	// RateLimitWindow is the window over which magic-link requests per
	// email are counted.
	// Env: IDENTITY_RATE_LIMIT_WINDOW
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" json:"rate_limit_window"`

	// RateLimitMax is the number of magic-link requests allowed per email
	// inside one window.
	// Env: IDENTITY_RATE_LIMIT_MAX
	RateLimitMax int `env:"RATE_LIMIT_MAX" json:"rate_limit_max"`
}

// Client holds settings consumed only by the sync client.
type Client struct {
	// ServerURL is the base URL of the relay server
	// (e.g. "https://sync.example.com").
	// Env: CLIENT_SERVER_URL
	ServerURL string `env:"SERVER_URL" json:"server_url"`

	// DataDir is the directory for the client's local state and logs.
	// Env: CLIENT_DATA_DIR
	DataDir string `env:"DATA_DIR" json:"data_dir"`
}

// Defaults applied after merging when a field is still unset.
const (
	DefaultTokenDuration       = 24 * time.Hour
	DefaultMagicLinkTTL        = 15 * time.Minute
	DefaultRateLimitWindow     = time.Hour
	DefaultRateLimitMax        = 3
	DefaultRoomCleanupInterval = time.Minute
	DefaultRequestTimeout      = 30 * time.Second
	DefaultDriver              = "sqlite3"
)

// GetServerConfig loads, merges, and validates the server configuration.
//
// Sources are applied in order: environment variables, command-line flags,
// then the optional JSON file, with earlier non-zero values winning the
// merge (mergo keeps existing values).
func GetServerConfig() (*StructuredConfig, error) {
	cfg, err := newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, cfg.validateServer()
}

func (cfg *StructuredConfig) applyDefaults() {
	if cfg.App.TokenDuration == 0 {
		cfg.App.TokenDuration = DefaultTokenDuration
	}
	if cfg.Identity.MagicLinkTTL == 0 {
		cfg.Identity.MagicLinkTTL = DefaultMagicLinkTTL
	}
	if cfg.Identity.RateLimitWindow == 0 {
		cfg.Identity.RateLimitWindow = DefaultRateLimitWindow
	}
	if cfg.Identity.RateLimitMax == 0 {
		cfg.Identity.RateLimitMax = DefaultRateLimitMax
	}
	if cfg.Server.RoomCleanupInterval == 0 {
		cfg.Server.RoomCleanupInterval = DefaultRoomCleanupInterval
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Storage.DB.Driver == "" {
		cfg.Storage.DB.Driver = DefaultDriver
	}
}

// validateServer checks the invariants the server cannot start without.
func (cfg *StructuredConfig) validateServer() error {
	if cfg.App.TokenSignKey == "" {
		return ErrInvalidAppConfigs
	}
	if cfg.Server.HTTPAddress == "" {
		return ErrInvalidServerConfigs
	}
	if cfg.Storage.DB.IdentityDSN == "" || cfg.Storage.DB.SyncDSN == "" {
		return ErrInvalidStorageConfigs
	}
	return nil
}
