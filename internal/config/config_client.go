package config

import (
	"fmt"
	"time"
)

// ClientConfig is the configuration view consumed by the sync client
// engine, assembled from [StructuredConfig].
type ClientConfig struct {
	// ServerURL is the base URL of the relay server.
	ServerURL string

	// DataDir is the directory for local client state and logs.
	DataDir string

	// RequestTimeout is the default timeout for identity HTTP requests.
	RequestTimeout time.Duration
}

// GetClientConfig builds and validates a client-specific config view from
// the merged structured configuration.
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}
	cfg.applyDefaults()

	clientCfg := &ClientConfig{
		ServerURL:      cfg.Client.ServerURL,
		DataDir:        cfg.Client.DataDir,
		RequestTimeout: cfg.Server.RequestTimeout,
	}

	return clientCfg, clientCfg.validate()
}

func (cfg *ClientConfig) validate() error {
	if cfg.ServerURL == "" || cfg.DataDir == "" {
		return ErrInvalidClientConfigs
	}

	return nil
}
