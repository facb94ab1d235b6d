package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stephnangue/notary/auth/token"
	"github.com/stephnangue/notary/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	log, _ := logger.NewGatedLogger(logger.DefaultConfig(), logger.GatedWriterConfig{})
	mgr, err := NewManager(Config{
		AuthKey:       "test-signing-secret",
		EncryptionKey: "test-encryption-secret",
		MaxAge:        7 * 24 * time.Hour,
	}, log)
	require.NoError(t, err)
	return mgr
}

func requestWithCookies(recorder *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range recorder.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestManager_WriteReadRoundTrip(t *testing.T) {
	mgr := newTestManager(t)

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	rec := &Record{
		UserUUID: "user-1",
		Remember: true,
		Token: &token.Token{
			Value:   "Bearer abc",
			Type:    token.TypeAuth,
			Expires: expires,
			Owner:   "user-1",
		},
	}

	recorder := httptest.NewRecorder()
	require.NoError(t, mgr.Write(recorder, rec))

	got := mgr.Read(requestWithCookies(recorder))
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserUUID)
	assert.True(t, got.Remember)
	require.NotNil(t, got.Token)
	assert.Equal(t, "Bearer abc", got.Token.Value)
	assert.Equal(t, token.TypeAuth, got.Token.Type)
	assert.True(t, got.Token.Expires.Equal(expires))
	assert.Equal(t, "user-1", got.Token.Owner)
}

func TestManager_ReadWithoutCookie(t *testing.T) {
	mgr := newTestManager(t)
	assert.Nil(t, mgr.Read(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestManager_TamperedCookieIsAbsent(t *testing.T) {
	mgr := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: mgr.Name(), Value: "garbage"})
	assert.Nil(t, mgr.Read(req))
}

func TestManager_ForeignKeyCookieIsAbsent(t *testing.T) {
	log, _ := logger.NewGatedLogger(logger.DefaultConfig(), logger.GatedWriterConfig{})
	writer, err := NewManager(Config{AuthKey: "one-secret", MaxAge: time.Hour}, log)
	require.NoError(t, err)
	reader, err := NewManager(Config{AuthKey: "another-secret", MaxAge: time.Hour}, log)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	require.NoError(t, writer.Write(recorder, &Record{UserUUID: "user-1"}))

	assert.Nil(t, reader.Read(requestWithCookies(recorder)))
}

func TestManager_RememberControlsMaxAge(t *testing.T) {
	mgr := newTestManager(t)

	recorder := httptest.NewRecorder()
	require.NoError(t, mgr.Write(recorder, &Record{UserUUID: "user-1", Remember: true}))
	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookies[0].MaxAge)

	recorder = httptest.NewRecorder()
	require.NoError(t, mgr.Write(recorder, &Record{UserUUID: "user-1"}))
	cookies = recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Zero(t, cookies[0].MaxAge, "without remember the cookie is session-scoped")
}

func TestManager_CookieAttributes(t *testing.T) {
	mgr := newTestManager(t)

	recorder := httptest.NewRecorder()
	require.NoError(t, mgr.Write(recorder, &Record{UserUUID: "user-1"}))
	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)

	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, "/", cookies[0].Path)
}

func TestManager_Destroy(t *testing.T) {
	mgr := newTestManager(t)

	recorder := httptest.NewRecorder()
	mgr.Destroy(recorder)
	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestManager_RequiresAuthKey(t *testing.T) {
	log, _ := logger.NewGatedLogger(logger.DefaultConfig(), logger.GatedWriterConfig{})
	_, err := NewManager(Config{}, log)
	assert.ErrorIs(t, err, ErrNoAuthKey)
}
