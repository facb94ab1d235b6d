package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stephnangue/notary/auth"
	"github.com/stephnangue/notary/auth/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookRequest(userID, authHeader string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/webhook", nil)
	if userID != "" {
		req.Header.Set("X-Hasura-User-Id", userID)
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return req
}

func seedWebhookUser(fixture *testFixture) {
	fixture.store.addUser(&auth.User{
		UUID:   "user-1",
		Email:  "ada@example.com",
		Role:   auth.RoleAdmin,
		Status: auth.StatusConfirmed,
	}, "unused")
	fixture.store.addToken(&token.Token{
		Value:   "Bearer live",
		Type:    token.TypeAuth,
		Expires: time.Now().Add(time.Hour),
		Owner:   "user-1",
	})
}

func TestWebhook_AcceptsValidToken(t *testing.T) {
	fixture := newTestFixture(t)
	seedWebhookUser(fixture)

	recorder := httptest.NewRecorder()
	fixture.handler.ServeHTTP(recorder, webhookRequest("user-1", "Bearer live"))

	require.Equal(t, http.StatusOK, recorder.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "admin", resp["X-Hasura-Role"])
	assert.Equal(t, "user-1", resp["X-Hasura-User-Id"])
}

func TestWebhook_AcceptsAnyLiveTokenDuringRotation(t *testing.T) {
	fixture := newTestFixture(t)
	seedWebhookUser(fixture)
	fixture.store.addToken(&token.Token{
		Value:   "Bearer fresh",
		Type:    token.TypeAuth,
		Expires: time.Now().Add(24 * time.Hour),
		Owner:   "user-1",
	})

	for _, value := range []string{"Bearer live", "Bearer fresh"} {
		recorder := httptest.NewRecorder()
		fixture.handler.ServeHTTP(recorder, webhookRequest("user-1", value))
		assert.Equal(t, http.StatusOK, recorder.Code, value)
	}
}

func TestWebhook_RejectionsAreIndistinguishable(t *testing.T) {
	fixture := newTestFixture(t)
	seedWebhookUser(fixture)
	fixture.store.addToken(&token.Token{
		Value:   "Bearer stale",
		Type:    token.TypeAuth,
		Expires: time.Now().Add(-time.Hour),
		Owner:   "user-1",
	})
	// A perfectly valid token, but owned by someone else.
	fixture.store.addToken(&token.Token{
		Value:   "Bearer other",
		Type:    token.TypeAuth,
		Expires: time.Now().Add(time.Hour),
		Owner:   "user-9",
	})

	cases := map[string]*http.Request{
		"missing auth header":    webhookRequest("user-1", ""),
		"missing user id":        webhookRequest("", "Bearer live"),
		"unknown user":           webhookRequest("ghost", "Bearer live"),
		"token of another user":  webhookRequest("user-1", "Bearer other"),
		"expired token":          webhookRequest("user-1", "Bearer stale"),
		"garbage auth header":    webhookRequest("user-1", "garbage"),
	}

	var bodies []string
	for name, req := range cases {
		recorder := httptest.NewRecorder()
		fixture.handler.ServeHTTP(recorder, req)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code, name)
		bodies = append(bodies, recorder.Body.String())
	}

	// Every rejection reads the same, no matter which check failed.
	for _, body := range bodies {
		assert.JSONEq(t, `{"message":"Unauthenticated"}`, body)
	}
}

func TestWebhook_NeverMints(t *testing.T) {
	fixture := newTestFixture(t)
	fixture.store.addUser(&auth.User{
		UUID:   "user-2",
		Email:  "bob@example.com",
		Role:   auth.RoleUser,
		Status: auth.StatusConfirmed,
	}, "unused")

	recorder := httptest.NewRecorder()
	fixture.handler.ServeHTTP(recorder, webhookRequest("user-2", "Bearer probe"))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	tokens, err := fixture.store.FetchTokens(nil, "user-2", token.TypeAuth)
	require.NoError(t, err)
	assert.Empty(t, tokens, "a failed probe must not create credentials")
}

func TestWebhook_MatchIsExact(t *testing.T) {
	fixture := newTestFixture(t)
	seedWebhookUser(fixture)

	// Prefixes, suffixes and case variants of a live token all fail.
	for _, value := range []string{"Bearer liv", "Bearer livee", "bearer live", "live"} {
		recorder := httptest.NewRecorder()
		fixture.handler.ServeHTTP(recorder, webhookRequest("user-1", value))
		assert.Equal(t, http.StatusUnauthorized, recorder.Code, value)
	}
}
