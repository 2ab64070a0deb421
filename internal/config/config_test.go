package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		EnvUplinkKey, EnvUplinkURL, "UPLINK_CONNECT_TIMEOUT", "UPLINK_CALL_TIMEOUT",
		"UPLINK_SERVER_PORT", "UPLINK_SERVER_KEY", "UPLINK_TICKET_SECRET", "UPLINK_TICKET_TTL",
		"REDIS_URL", "REDIS_PASSWORD", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.UplinkKey)
	assert.False(t, cfg.HasUplinkKey())
	assert.Equal(t, DefaultUplinkURL, cfg.UplinkURL)
	assert.Zero(t, cfg.ConnectTimeout)
	assert.Zero(t, cfg.CallTimeout)
	assert.Equal(t, 8090, cfg.ServerPort)
	assert.Equal(t, time.Hour, cfg.TicketTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvUplinkKey, "  valid-key  ")
	t.Setenv(EnvUplinkURL, "ws://localhost:8090/_/uplink")
	t.Setenv("UPLINK_CALL_TIMEOUT", "30s")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "valid-key", cfg.UplinkKey)
	assert.True(t, cfg.HasUplinkKey())
	assert.Equal(t, "ws://localhost:8090/_/uplink", cfg.UplinkURL)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	opts, err := cfg.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		password string
		addr     string
		wantPass string
		db       int
	}{
		{"password in url", "redis://:pw@host:6379/0", "", "host:6379", "pw", 0},
		{"url password wins", "redis://:pw@host:6379/2", "env-pw", "host:6379", "pw", 2},
		{"bare host port", "cache:6379", "env-pw", "cache:6379", "env-pw", 0},
		{"tls scheme", "rediss://cache:6380/1", "", "cache:6380", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{RedisURL: tt.url, RedisPassword: tt.password}
			opts, err := cfg.RedisOptions()
			require.NoError(t, err)
			assert.Equal(t, tt.addr, opts.Addr)
			assert.Equal(t, tt.wantPass, opts.Password)
			assert.Equal(t, tt.db, opts.DB)
		})
	}

	_, err := (&Config{RedisURL: "redis://host:6379/notadb"}).RedisOptions()
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestLoadConfig_BlankKeyIsMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvUplinkKey, "   ")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.HasUplinkKey())
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPLINK_CONNECT_TIMEOUT", "soon")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "UPLINK_CONNECT_TIMEOUT")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		UplinkURL:  "https://anvil.works/uplink",
		ServerPort: 0,
		TicketTTL:  time.Hour,
		LogLevel:   "loud",
		LogFormat:  "xml",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANVIL_UPLINK_URL")
	assert.Contains(t, err.Error(), "UPLINK_SERVER_PORT")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{
		UplinkURL:  DefaultUplinkURL,
		ServerPort: 8090,
		TicketTTL:  time.Hour,
		LogLevel:   "info",
		LogFormat:  "json",
	}

	err := cfg.ValidateServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPLINK_SERVER_KEY")
	assert.Contains(t, err.Error(), "UPLINK_TICKET_SECRET")

	cfg.RedisURL = "redis://host:6379/notadb"
	assert.ErrorContains(t, cfg.ValidateServer(), "REDIS_URL")
	cfg.RedisURL = "redis://:pw@host:6379/0"

	cfg.ServerKey = "server-key"
	cfg.TicketSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.ValidateServer())
	assert.Equal(t, ":8090", cfg.ServerAddr())
}
