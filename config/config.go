package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the configuration for the notary server.
type Config struct {
	LogLevel           string `hcl:"log_level,optional"`
	LogFormat          string `hcl:"log_format,optional"`
	LogFile            string `hcl:"log_file,optional"`
	LogRotateMegabytes int    `hcl:"log_rotate_megabytes,optional"`
	LogRotateMaxFiles  int    `hcl:"log_rotate_max_files,optional"`

	Listeners []ListenerBlock `hcl:"listener,block"`
	Backend   *BackendBlock   `hcl:"backend,block"`
	Session   *SessionBlock   `hcl:"session,block"`
	Tokens    *TokensBlock    `hcl:"tokens,block"`
}

// BackendBlock configures the remote GraphQL store that owns users, tokens
// and notes. The admin secret is the elevated credential used for token
// management calls, so that issuing a token never depends on a token.
type BackendBlock struct {
	Type           string `hcl:"type,label"` // "hasura"
	Endpoint       string `hcl:"endpoint"`
	AdminSecret    string `hcl:"admin_secret"`
	TimeoutSeconds int    `hcl:"timeout_seconds,optional"`
}

// Timeout returns the per-call timeout for store round-trips.
func (b *BackendBlock) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// SessionBlock configures the client-side session cookie.
type SessionBlock struct {
	CookieName    string `hcl:"cookie_name,optional"`
	AuthKey       string `hcl:"auth_key"`                // HMAC key, 32 or 64 bytes
	EncryptionKey string `hcl:"encryption_key,optional"` // AES key, 16/24/32 bytes
	MaxAgeDays    int    `hcl:"max_age_days,optional"`   // "remember me" cookie age
	Secure        bool   `hcl:"secure,optional"`
}

func (s *SessionBlock) Name() string {
	if s.CookieName == "" {
		return "__session"
	}
	return s.CookieName
}

func (s *SessionBlock) MaxAge() time.Duration {
	if s.MaxAgeDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(s.MaxAgeDays) * 24 * time.Hour
}

// TokensBlock configures auth token issuance and caching.
type TokensBlock struct {
	TTLHours      int `hcl:"ttl_hours,optional"`
	RenewFactor   int `hcl:"renew_factor,optional"`   // renew when remaining < ttl/factor
	CacheSize     int `hcl:"cache_size,optional"`
	ReaperWorkers int `hcl:"reaper_workers,optional"`
	ReaperQueue   int `hcl:"reaper_queue,optional"`
}

func (t *TokensBlock) TTL() time.Duration {
	if t.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(t.TTLHours) * time.Hour
}

func (t *TokensBlock) Factor() int {
	if t.RenewFactor <= 0 {
		return 4
	}
	return t.RenewFactor
}

func (t *TokensBlock) Size() int {
	if t.CacheSize <= 0 {
		return 500
	}
	return t.CacheSize
}

type ListenerBlock struct {
	Name        string `hcl:"name,label"`
	Protocol    string `hcl:"protocol"`
	Address     string `hcl:"address"`
	TLSCertFile string `hcl:"tls_cert_file,optional"`
	TLSKeyFile  string `hcl:"tls_key_file,optional"`
	TLSEnabled  bool   `hcl:"tls_enabled,optional"`
}

func LoadConfig(configFile string) (*Config, error) {
	var config Config

	err := hclsimple.DecodeFile(configFile, nil, &config)
	if err != nil {
		return nil, err
	}

	if config.Backend == nil {
		return nil, fmt.Errorf("a backend block is required")
	}
	if config.Session == nil {
		return nil, fmt.Errorf("a session block is required")
	}
	if config.Tokens == nil {
		config.Tokens = &TokensBlock{}
	}

	return &config, nil
}

// GetListenerByName returns a listener by its name (label)
func (c *Config) GetListenerByName(name string) (*ListenerBlock, error) {
	for _, listener := range c.Listeners {
		if listener.Name == name {
			return &listener, nil
		}
	}
	return nil, fmt.Errorf("listener '%s' not found", name)
}

// GetApiListener is a convenience method to get the api listener
func (c *Config) GetApiListener() (*ListenerBlock, error) {
	return c.GetListenerByName("api")
}
