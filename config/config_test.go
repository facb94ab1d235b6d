package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
log_level  = "debug"
log_format = "json"

listener "api" {
  protocol = "tcp"
  address  = "127.0.0.1:8200"
}

backend "hasura" {
  endpoint        = "http://localhost:8080/v1/graphql"
  admin_secret    = "secret"
  timeout_seconds = 5
}

session {
  cookie_name    = "__session"
  auth_key       = "0123456789abcdef0123456789abcdef"
  encryption_key = "0123456789abcdef"
  max_age_days   = 14
}

tokens {
  ttl_hours    = 12
  renew_factor = 3
  cache_size   = 100
}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notary.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "hasura", cfg.Backend.Type)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, 14*24*time.Hour, cfg.Session.MaxAge())
	assert.Equal(t, 12*time.Hour, cfg.Tokens.TTL())
	assert.Equal(t, 3, cfg.Tokens.Factor())
	assert.Equal(t, 100, cfg.Tokens.Size())

	ln, err := cfg.GetApiListener()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8200", ln.Address)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
backend "hasura" {
  endpoint     = "http://localhost:8080/v1/graphql"
  admin_secret = "secret"
}

session {
  auth_key = "0123456789abcdef0123456789abcdef"
}
`))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, "__session", cfg.Session.Name())
	assert.Equal(t, 24*time.Hour, cfg.Tokens.TTL())
	assert.Equal(t, 4, cfg.Tokens.Factor())
}

func TestLoadConfig_MissingBackend(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
session {
  auth_key = "0123456789abcdef0123456789abcdef"
}
`))
	require.Error(t, err)
}

func TestGetListenerByName_NotFound(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	_, err = cfg.GetListenerByName("mysql")
	assert.Error(t, err)
}
