package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":3000", cfg.Server.Address)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled)
}

func TestValidate_Rejections(t *testing.T) {
	mutations := map[string]func(*Config){
		"empty address":       func(c *Config) { c.Server.Address = "" },
		"no jwt secret":       func(c *Config) { c.Auth.JWTSecret = "" },
		"bad driver":          func(c *Config) { c.Database.Driver = "postgres" },
		"pong before ping":    func(c *Config) { c.Signal.PongTimeout = c.Signal.PingInterval / 2 },
		"zero max attempts":   func(c *Config) { c.Security.MaxLoginAttempts = 0 },
		"redis without addr":  func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" },
		"rate limit zero rps": func(c *Config) { c.RateLimiting.Enabled = true; c.RateLimiting.HTTP.RequestsPerSecond = 0 },
	}
	for name, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), "case %s", name)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Address)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  address: ":4000"
auth:
  jwt_secret: "file-secret"
  access_token_ttl: 5m
security:
  max_login_attempts: 7
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":4000", cfg.Server.Address)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 7, cfg.Security.MaxLoginAttempts)
	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Signal.PingInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`auth: {jwt_secret: "file-secret"}`), 0o644))

	t.Setenv("CAMSIGNAL_JWT_SECRET", "env-secret")
	t.Setenv("CAMSIGNAL_SERVER_ADDRESS", ":5000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, ":5000", cfg.Server.Address)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
