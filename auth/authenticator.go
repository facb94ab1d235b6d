package auth

import (
	"context"
	"errors"
	"time"

	"github.com/stephnangue/notary/auth/session"
	"github.com/stephnangue/notary/auth/token"
	"github.com/stephnangue/notary/helper"
	"github.com/stephnangue/notary/logger"
)

var (
	// ErrNoSession means the request carried no usable session at all.
	// It is the one outcome reported as an error rather than a Decision:
	// there is no user to decide about.
	ErrNoSession = errors.New("no session")
)

// State classifies what Authenticate found. The checks run in a fixed
// order, so each state implies everything before it held: an expiring
// token belongs to a resolvable user, an expired one was at least present.
type State int

const (
	// StateAuthenticated: live token, no action needed.
	StateAuthenticated State = iota
	// StateMissingUser: the session names a user the store does not have.
	StateMissingUser
	// StateMissingToken: the session has a user but no token snapshot.
	StateMissingToken
	// StateExpiredToken: the session's token is past its expiry.
	StateExpiredToken
	// StateExpiringToken: the token is live but inside the renewal window.
	StateExpiringToken
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateMissingUser:
		return "missing_user"
	case StateMissingToken:
		return "missing_token"
	case StateExpiredToken:
		return "expired_token"
	case StateExpiringToken:
		return "expiring_token"
	default:
		return "unknown"
	}
}

// Decision is the outcome of authenticating one request.
//
// State records what was observed before any recovery ran; Token and
// Renewed record what recovery produced. A recovered missing or expiring
// token therefore reads State == StateMissingToken / StateExpiringToken
// with Renewed == true and a live Token, not State == StateAuthenticated.
type Decision struct {
	State State

	// User is the resolved account, nil only for StateMissingUser.
	User *User

	// Token is the token to use from here on: the session's own for
	// StateAuthenticated and StateExpiredToken, a freshly obtained one
	// when Renewed is set.
	Token *token.Token

	// Renewed means the session snapshot is stale and the caller must
	// rewrite the session with Token before responding.
	Renewed bool
}

// Authenticated reports whether the request ended up with a usable
// identity and a live token, recovery included.
func (d *Decision) Authenticated() bool {
	return d.User != nil && d.Token != nil &&
		d.State != StateExpiredToken && d.State != StateMissingUser
}

// Authenticator turns a session record into an authentication decision.
//
// An expired token is deliberately not recovered: expiry is the one hard
// deadline a stolen session cannot outlive, so the holder has to log in
// again. A missing token and an expiring token are both recovered
// in-place, which is what keeps long-lived sessions working without the
// user ever seeing a login page.
type Authenticator struct {
	directory Directory
	tokens    *token.Store
	ttl       time.Duration
	factor    int
	logger    logger.Logger
}

// NewAuthenticator wires an authenticator over the given user directory
// and token store. Tokens are minted with ttl and renewed once their
// remaining life drops under ttl/factor.
func NewAuthenticator(directory Directory, tokens *token.Store, ttl time.Duration, factor int, log logger.Logger) *Authenticator {
	if factor <= 0 {
		factor = 4
	}
	return &Authenticator{
		directory: directory,
		tokens:    tokens,
		ttl:       ttl,
		factor:    factor,
		logger:    log,
	}
}

// Authenticate evaluates the session record against the store.
//
// The possible outcomes, in the order they are checked:
//
//	nil record or empty user id        -> ErrNoSession
//	user unresolvable in the store     -> StateMissingUser (terminal)
//	no token in the session            -> StateMissingToken, recovered
//	token expired                      -> StateExpiredToken (terminal)
//	token inside the renewal window    -> StateExpiringToken, recovered
//	otherwise                          -> StateAuthenticated
//
// A store transport failure at any step surfaces as an error; the caller
// must not treat it as "not logged in".
func (a *Authenticator) Authenticate(ctx context.Context, rec *session.Record) (*Decision, error) {
	if rec == nil || rec.UserUUID == "" {
		return nil, ErrNoSession
	}

	now := time.Now()

	user, err := a.directory.UserByUUID(ctx, rec.UserUUID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		a.logger.Warn("session names an unknown user",
			logger.String("user_uuid", rec.UserUUID))
		return &Decision{State: StateMissingUser}, nil
	}

	if rec.Token == nil {
		t, err := a.tokens.GetOrCreate(ctx, user.UUID, token.TypeAuth, a.ttl, true)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("attached token to tokenless session",
			logger.String("user_uuid", user.UUID),
			logger.String("token_hash", helper.Get8BytesHash(t.Value)))
		return &Decision{State: StateMissingToken, User: user, Token: t, Renewed: true}, nil
	}

	if rec.Token.Expired(now) {
		a.logger.Debug("rejecting session with expired token",
			logger.String("user_uuid", user.UUID),
			logger.String("token_hash", helper.Get8BytesHash(rec.Token.Value)))
		return &Decision{State: StateExpiredToken, User: user, Token: rec.Token}, nil
	}

	if rec.Token.TTL(now) < a.ttl/time.Duration(a.factor) {
		t, err := a.tokens.Create(ctx, user.UUID, token.TypeAuth, a.ttl, true)
		if err != nil {
			// The current token still works; renewal retries on the
			// next request.
			a.logger.Warn("token renewal failed, keeping current token",
				logger.String("user_uuid", user.UUID),
				logger.Err(err))
			return &Decision{State: StateExpiringToken, User: user, Token: rec.Token}, nil
		}
		a.logger.Debug("renewed expiring token",
			logger.String("user_uuid", user.UUID),
			logger.String("token_hash", helper.Get8BytesHash(t.Value)))
		return &Decision{State: StateExpiringToken, User: user, Token: t, Renewed: true}, nil
	}

	return &Decision{State: StateAuthenticated, User: user, Token: rec.Token}, nil
}
