package token

import (
	"context"
	"time"
)

// Type discriminates what a token is for. The numeric values are stored
// as-is in the backend, so they must never be reordered.
type Type int

const (
	TypeAuth Type = iota
	TypePasswordReset
)

func (t Type) String() string {
	switch t {
	case TypeAuth:
		return "auth"
	case TypePasswordReset:
		return "password_reset"
	default:
		return "unknown"
	}
}

// Token is a bearer credential for one user. Tokens are immutable once
// created; renewal mints a new one and the old one stays valid until its
// own expiry, so several live tokens per (owner, type) is a normal state,
// not a leak.
type Token struct {
	Value   string    // opaque "Bearer <hex>" string, globally unique
	Type    Type      //
	Expires time.Time // absolute expiry
	Owner   string    // owning user uuid
}

// Expired reports whether the token is expired at the given instant.
// Callers capture "now" once per logical operation and reuse it so a
// single decision never straddles two clock reads.
func (t *Token) Expired(now time.Time) bool {
	return t.Expires.Before(now)
}

// TTL returns the time remaining until expiry at the given instant.
// Negative when already expired.
func (t *Token) TTL(now time.Time) time.Duration {
	return t.Expires.Sub(now)
}

// Backend executes token operations against the remote store.
//
// All three calls are remote round-trips. Absence is never an error:
// FetchTokens returns an empty slice and DeleteToken returns (nil, nil)
// when there is nothing there. A returned error always means transport or
// store failure and must not be read as "token does not exist".
type Backend interface {
	FetchTokens(ctx context.Context, owner string, typ Type) ([]*Token, error)
	InsertToken(ctx context.Context, t *Token) (*Token, error)
	DeleteToken(ctx context.Context, value string) (*Token, error)
}
