package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration wraps time.Duration so JSON config files can carry durations as
// human-readable strings ("24h", "30s") or raw nanosecond numbers.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler for [Duration].
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("error parsing duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration value: %v", v)
	}

	return nil
}

// jsonConfig mirrors [StructuredConfig] with JSON-friendly duration fields.
type jsonConfig struct {
	App struct {
		TokenSignKey  string   `json:"token_sign_key"`
		TokenIssuer   string   `json:"token_issuer"`
		TokenDuration Duration `json:"token_duration"`
		Version       string   `json:"version"`
	} `json:"app"`

	Storage struct {
		DB struct {
			Driver      string `json:"driver"`
			IdentityDSN string `json:"identity_dsn"`
			SyncDSN     string `json:"sync_dsn"`
		} `json:"db"`
	} `json:"storage"`

	Server struct {
		Address             string   `json:"address"`
		RequestTimeout      Duration `json:"request_timeout"`
		RoomCleanupInterval Duration `json:"room_cleanup_interval"`
	} `json:"server"`

	Identity struct {
		MagicLinkTTL    Duration `json:"magic_link_ttl"`
		RateLimitWindow Duration `json:"rate_limit_window"`
		RateLimitMax    int      `json:"rate_limit_max"`
	} `json:"identity"`

	Client struct {
		ServerURL string `json:"server_url"`
		DataDir   string `json:"data_dir"`
	} `json:"client"`
}

// parseJSON reads and decodes the JSON config file at path and maps it onto
// a [StructuredConfig].
func parseJSON(path string) (*StructuredConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading json config file: %w", err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return nil, fmt.Errorf("error parsing json config file: %w", err)
	}

	return &StructuredConfig{
		App: App{
			TokenSignKey:  jc.App.TokenSignKey,
			TokenIssuer:   jc.App.TokenIssuer,
			TokenDuration: jc.App.TokenDuration.Duration,
			Version:       jc.App.Version,
		},
		Storage: Storage{
			DB: DB{
				Driver:      jc.Storage.DB.Driver,
				IdentityDSN: jc.Storage.DB.IdentityDSN,
				SyncDSN:     jc.Storage.DB.SyncDSN,
			},
		},
		Server: Server{
			HTTPAddress:         jc.Server.Address,
			RequestTimeout:      jc.Server.RequestTimeout.Duration,
			RoomCleanupInterval: jc.Server.RoomCleanupInterval.Duration,
		},
		Identity: Identity{
			MagicLinkTTL:    jc.Identity.MagicLinkTTL.Duration,
			RateLimitWindow: jc.Identity.RateLimitWindow.Duration,
			RateLimitMax:    jc.Identity.RateLimitMax,
		},
		Client: Client{
			ServerURL: jc.Client.ServerURL,
			DataDir:   jc.Client.DataDir,
		},
	}, nil
}
