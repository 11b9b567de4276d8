package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_PopulatesNestedFields(t *testing.T) {
	t.Setenv("APP_TOKEN_SIGN_KEY", "super-secret")
	t.Setenv("APP_TOKEN_DURATION", "12h")
	t.Setenv("SERVER_ADDRESS", "0.0.0.0:8080")
	t.Setenv("STORAGE_DB_DRIVER", "sqlite3")
	t.Setenv("STORAGE_DB_IDENTITY_DSN", "identity.db")
	t.Setenv("STORAGE_DB_SYNC_DSN", "sync.db")
	t.Setenv("IDENTITY_RATE_LIMIT_MAX", "5")

	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "super-secret", cfg.App.TokenSignKey)
	assert.Equal(t, 12*time.Hour, cfg.App.TokenDuration)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddress)
	assert.Equal(t, "sqlite3", cfg.Storage.DB.Driver)
	assert.Equal(t, "identity.db", cfg.Storage.DB.IdentityDSN)
	assert.Equal(t, "sync.db", cfg.Storage.DB.SyncDSN)
	assert.Equal(t, 5, cfg.Identity.RateLimitMax)
}

func TestParseJSON_StringAndNumericDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"app": {"token_sign_key": "k", "token_duration": "24h"},
		"server": {"address": "localhost:9000", "request_timeout": 30000000000},
		"storage": {"db": {"driver": "pgx", "identity_dsn": "a", "sync_dsn": "b"}},
		"identity": {"magic_link_ttl": "15m", "rate_limit_max": 3},
		"client": {"server_url": "http://localhost:9000", "data_dir": "/tmp/sakya"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := parseJSON(path)
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.App.TokenDuration)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Identity.MagicLinkTTL)
	assert.Equal(t, "pgx", cfg.Storage.DB.Driver)
	assert.Equal(t, "http://localhost:9000", cfg.Client.ServerURL)
}

func TestParseJSON_MissingFile(t *testing.T) {
	_, err := parseJSON("/nonexistent/config.json")
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &StructuredConfig{}
	cfg.applyDefaults()

	assert.Equal(t, DefaultTokenDuration, cfg.App.TokenDuration)
	assert.Equal(t, DefaultMagicLinkTTL, cfg.Identity.MagicLinkTTL)
	assert.Equal(t, DefaultRateLimitMax, cfg.Identity.RateLimitMax)
	assert.Equal(t, DefaultRoomCleanupInterval, cfg.Server.RoomCleanupInterval)
	assert.Equal(t, DefaultDriver, cfg.Storage.DB.Driver)
}

func TestValidateServer(t *testing.T) {
	valid := &StructuredConfig{
		App:     App{TokenSignKey: "k"},
		Server:  Server{HTTPAddress: "localhost:8080"},
		Storage: Storage{DB: DB{IdentityDSN: "a", SyncDSN: "b"}},
	}
	assert.NoError(t, valid.validateServer())

	missingKey := *valid
	missingKey.App.TokenSignKey = ""
	assert.ErrorIs(t, missingKey.validateServer(), ErrInvalidAppConfigs)

	missingAddr := *valid
	missingAddr.Server.HTTPAddress = ""
	assert.ErrorIs(t, missingAddr.validateServer(), ErrInvalidServerConfigs)

	missingDSN := *valid
	missingDSN.Storage.DB.SyncDSN = ""
	assert.ErrorIs(t, missingDSN.validateServer(), ErrInvalidStorageConfigs)
}

func TestNetAddress_SetAndString(t *testing.T) {
	var a NetAddress
	require.NoError(t, a.Set("localhost:9090"))
	assert.Equal(t, "localhost:9090", a.String())

	assert.Error(t, a.Set("no-port"))
	assert.Error(t, a.Set("localhost:-1"))
	assert.Error(t, a.Set("not-an-ip:8080"))
}
