package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stephnangue/notary/auth/session"
	"github.com/stephnangue/notary/auth/token"
	"github.com/stephnangue/notary/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	mu        sync.Mutex
	tokens    []*token.Token
	fetchErr  error
	insertErr error
	inserted  int
}

func (m *memoryBackend) FetchTokens(_ context.Context, owner string, typ token.Type) ([]*token.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []*token.Token
	for _, t := range m.tokens {
		if t.Owner == owner && t.Type == typ {
			dup := *t
			out = append(out, &dup)
		}
	}
	return out, nil
}

func (m *memoryBackend) InsertToken(_ context.Context, t *token.Token) (*token.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	m.inserted++
	dup := *t
	m.tokens = append(m.tokens, &dup)
	out := *t
	return &out, nil
}

func (m *memoryBackend) DeleteToken(_ context.Context, value string) (*token.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tokens {
		if t.Value == value {
			m.tokens = append(m.tokens[:i], m.tokens[i+1:]...)
			return t, nil
		}
	}
	return nil, nil
}

type memoryDirectory struct {
	users map[string]*User
	err   error
}

func (m *memoryDirectory) UserByUUID(_ context.Context, uuid string) (*User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[uuid], nil
}

func newTestAuthenticator(t *testing.T, directory Directory, backend token.Backend) *Authenticator {
	t.Helper()
	log, _ := logger.NewGatedLogger(logger.DefaultConfig(), logger.GatedWriterConfig{})
	store, err := token.NewStore(backend, log, token.DefaultStoreConfig())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return NewAuthenticator(directory, store, 24*time.Hour, 4, log)
}

func knownUser() *User {
	return &User{
		UUID:      "user-1",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Role:      RoleUser,
		Status:    StatusConfirmed,
	}
}

func TestAuthenticate_NoSession(t *testing.T) {
	auth := newTestAuthenticator(t,
		&memoryDirectory{users: map[string]*User{}},
		&memoryBackend{})

	_, err := auth.Authenticate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = auth.Authenticate(context.Background(), &session.Record{})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestAuthenticate_MissingUser(t *testing.T) {
	backend := &memoryBackend{}
	auth := newTestAuthenticator(t, &memoryDirectory{users: map[string]*User{}}, backend)

	rec := &session.Record{UserUUID: "ghost"}
	decision, err := auth.Authenticate(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StateMissingUser, decision.State)
	assert.Nil(t, decision.User)
	assert.False(t, decision.Authenticated())
	assert.Zero(t, backend.inserted, "an unknown user must never get a token")
}

func TestAuthenticate_DirectoryErrorSurfaces(t *testing.T) {
	auth := newTestAuthenticator(t,
		&memoryDirectory{err: errors.New("store unreachable")},
		&memoryBackend{})

	_, err := auth.Authenticate(context.Background(), &session.Record{UserUUID: "user-1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestAuthenticate_MissingTokenIsRecovered(t *testing.T) {
	backend := &memoryBackend{}
	auth := newTestAuthenticator(t,
		&memoryDirectory{users: map[string]*User{"user-1": knownUser()}}, backend)

	decision, err := auth.Authenticate(context.Background(), &session.Record{UserUUID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, StateMissingToken, decision.State)
	assert.True(t, decision.Renewed)
	assert.True(t, decision.Authenticated())
	require.NotNil(t, decision.Token)
	assert.Equal(t, "user-1", decision.Token.Owner)
	assert.True(t, decision.Token.Expires.After(time.Now()))
}

func TestAuthenticate_MissingTokenReusesExisting(t *testing.T) {
	existing := &token.Token{
		Value:   "Bearer abc",
		Type:    token.TypeAuth,
		Expires: time.Now().Add(20 * time.Hour),
		Owner:   "user-1",
	}
	backend := &memoryBackend{tokens: []*token.Token{existing}}
	auth := newTestAuthenticator(t,
		&memoryDirectory{users: map[string]*User{"user-1": knownUser()}}, backend)

	decision, err := auth.Authenticate(context.Background(), &session.Record{UserUUID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, StateMissingToken, decision.State)
	assert.Equal(t, "Bearer abc", decision.Token.Value)
	assert.Zero(t, backend.inserted)
}

func TestAuthenticate_ExpiredTokenIsTerminal(t *testing.T) {
	backend := &memoryBackend{}
	auth := newTestAuthenticator(t,
		&memoryDirectory{users: map[string]*User{"user-1": knownUser()}}, backend)

	rec := &session.Record{
		UserUUID: "user-1",
		Token: &token.Token{
			Value:   "Bearer stale",
			Type:    token.TypeAuth,
			Expires: time.Now().Add(-time.Minute),
			Owner:   "user-1",
		},
	}
	decision, err := auth.Authenticate(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StateExpiredToken, decision.State)
	assert.False(t, decision.Authenticated())
	assert.False(t, decision.Renewed)
	assert.Zero(t, backend.inserted, "expiry must force a fresh login, not a renewal")
}

func TestAuthenticate_ExpiringTokenIsRenewed(t *testing.T) {
	// 24h ttl, factor 4: anything under 6h remaining is renewed.
	backend := &memoryBackend{}
	auth := newTestAuthenticator(t,
		&memoryDirectory{users: map[string]*User{"user-1": knownUser()}}, backend)

	rec := &session.Record{
		UserUUID: "user-1",
		Token: &token.Token{
			Value:   "Bearer short",
			Type:    token.TypeAuth,
			Expires: time.Now().Add(time.Hour),
			Owner:   "user-1",
		},
	}
	decision, err := auth.Authenticate(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StateExpiringToken, decision.State)
	assert.True(t, decision.Renewed)
	assert.True(t, decision.Authenticated())
	assert.NotEqual(t, "Bearer short", decision.Token.Value)
	assert.Equal(t, 1, backend.inserted)
}

func TestAuthenticate_RenewalFailureKeepsCurrentToken(t *testing.T) {
	backend := &memoryBackend{insertErr: errors.New("store unreachable")}
	auth := newTestAuthenticator(t,
		&memoryDirectory{users: map[string]*User{"user-1": knownUser()}}, backend)

	rec := &session.Record{
		UserUUID: "user-1",
		Token: &token.Token{
			Value:   "Bearer short",
			Type:    token.TypeAuth,
			Expires: time.Now().Add(time.Hour),
			Owner:   "user-1",
		},
	}
	decision, err := auth.Authenticate(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StateExpiringToken, decision.State)
	assert.False(t, decision.Renewed)
	assert.Equal(t, "Bearer short", decision.Token.Value)
	assert.True(t, decision.Authenticated())
}

func TestAuthenticate_LiveToken(t *testing.T) {
	backend := &memoryBackend{}
	auth := newTestAuthenticator(t,
		&memoryDirectory{users: map[string]*User{"user-1": knownUser()}}, backend)

	rec := &session.Record{
		UserUUID: "user-1",
		Token: &token.Token{
			Value:   "Bearer live",
			Type:    token.TypeAuth,
			Expires: time.Now().Add(20 * time.Hour),
			Owner:   "user-1",
		},
	}
	decision, err := auth.Authenticate(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, StateAuthenticated, decision.State)
	assert.True(t, decision.Authenticated())
	assert.False(t, decision.Renewed)
	assert.Equal(t, "Bearer live", decision.Token.Value)
	assert.Zero(t, backend.inserted)
}

func TestRoleOrdering(t *testing.T) {
	assert.True(t, RoleAtLeast(RoleOwner, RoleUser))
	assert.True(t, RoleAtLeast(RoleAdmin, RoleUser))
	assert.True(t, RoleAtLeast(RoleUser, RoleUser))
	assert.False(t, RoleAtLeast(RoleUser, RoleAdmin))
	assert.False(t, RoleAtLeast(RoleAdmin, RoleOwner))

	assert.Equal(t, []Role{RoleOwner, RoleAdmin, RoleUser}, EligibleRoles(RoleOwner))
	assert.Equal(t, []Role{RoleAdmin, RoleUser}, EligibleRoles(RoleAdmin))
	assert.Equal(t, []Role{RoleUser}, EligibleRoles(RoleUser))
}
