package session

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorilla/securecookie"
	"github.com/stephnangue/notary/auth/token"
	"github.com/stephnangue/notary/logger"
)

var (
	ErrNoAuthKey = errors.New("session auth key must not be empty")
)

// Record is what the session cookie carries: the user's identity and a
// snapshot of the auth token taken when the session was last written.
// The snapshot can lag behind the store; callers revalidate it against
// the store on every authenticated request.
type Record struct {
	UserUUID string
	Token    *token.Token

	// Remember is the persistence choice made at login. It rides along
	// in the cookie so a later recommit keeps the same lifetime.
	Remember bool
}

// wireRecord is the flattened shape that goes into the cookie. It only
// changes in backward-compatible ways; an undecodable cookie is treated
// as no session, never as an error.
type wireRecord struct {
	UserUUID     string `mapstructure:"user_uuid"`
	TokenValue   string `mapstructure:"token_value"`
	TokenType    int    `mapstructure:"token_type"`
	TokenExpires int64  `mapstructure:"token_expires"`
	TokenOwner   string `mapstructure:"token_owner"`
	Remember     bool   `mapstructure:"remember"`
}

// Config holds the cookie parameters for a session manager.
type Config struct {
	// CookieName is the cookie the session travels in.
	CookieName string

	// AuthKey signs the cookie. Required.
	AuthKey string

	// EncryptionKey additionally encrypts the cookie payload. Optional;
	// when empty the cookie is signed but readable.
	EncryptionKey string

	// MaxAge is the cookie lifetime when the client asked to be
	// remembered. Without remember the cookie is session-scoped.
	MaxAge time.Duration

	// Secure marks the cookie as https-only.
	Secure bool
}

// Manager reads and writes the signed session cookie. Cookies that fail
// signature or decoding checks are reported as absent, so a tampered or
// stale cookie degrades to "not logged in" rather than an error page.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge time.Duration
	secure bool
	logger logger.Logger
}

// NewManager creates a session manager from the given cookie config.
func NewManager(config Config, log logger.Logger) (*Manager, error) {
	if config.AuthKey == "" {
		return nil, ErrNoAuthKey
	}

	// Operators hand us passphrases, not fixed-length keys, so both are
	// stretched to the lengths securecookie wants.
	authKey := deriveKey(config.AuthKey)
	var encKey []byte
	if config.EncryptionKey != "" {
		encKey = deriveKey(config.EncryptionKey)
	}

	codec := securecookie.New(authKey, encKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(config.MaxAge.Seconds()))

	name := config.CookieName
	if name == "" {
		name = "__session"
	}

	return &Manager{
		codec:  codec,
		name:   name,
		maxAge: config.MaxAge,
		secure: config.Secure,
		logger: log,
	}, nil
}

// Read returns the session carried by the request, or nil when there is
// none. A cookie that cannot be verified or decoded counts as none.
func (m *Manager) Read(r *http.Request) *Record {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return nil
	}

	var raw map[string]interface{}
	if err := m.codec.Decode(m.name, cookie.Value, &raw); err != nil {
		m.logger.Debug("discarding undecodable session cookie", logger.Err(err))
		return nil
	}

	var wire wireRecord
	if err := mapstructure.Decode(raw, &wire); err != nil {
		m.logger.Debug("discarding malformed session cookie", logger.Err(err))
		return nil
	}

	if wire.UserUUID == "" {
		return nil
	}

	rec := &Record{UserUUID: wire.UserUUID, Remember: wire.Remember}
	if wire.TokenValue != "" {
		rec.Token = &token.Token{
			Value:   wire.TokenValue,
			Type:    token.Type(wire.TokenType),
			Expires: time.Unix(wire.TokenExpires, 0),
			Owner:   wire.TokenOwner,
		}
	}
	return rec
}

// Write sets the session cookie for the given record. With Remember set
// the cookie persists for the configured max age; without it the cookie
// dies with the browser session.
func (m *Manager) Write(w http.ResponseWriter, rec *Record) error {
	wire := map[string]interface{}{
		"user_uuid": rec.UserUUID,
		"remember":  rec.Remember,
	}
	if rec.Token != nil {
		wire["token_value"] = rec.Token.Value
		wire["token_type"] = int(rec.Token.Type)
		wire["token_expires"] = rec.Token.Expires.Unix()
		wire["token_owner"] = rec.Token.Owner
	}

	encoded, err := m.codec.Encode(m.name, wire)
	if err != nil {
		return err
	}

	cookie := &http.Cookie{
		Name:     m.name,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.secure,
	}
	if rec.Remember {
		cookie.MaxAge = int(m.maxAge.Seconds())
	}

	http.SetCookie(w, cookie)
	return nil
}

// Destroy expires the session cookie.
func (m *Manager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.secure,
	})
}

// Name returns the cookie name the manager operates on.
func (m *Manager) Name() string {
	return m.name
}

func deriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}
