package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stephnangue/notary/auth"
	"github.com/stephnangue/notary/auth/session"
	"github.com/stephnangue/notary/auth/token"
	"github.com/stephnangue/notary/logger"
)

// UserStore is what the handlers need from the user side of the backend.
type UserStore interface {
	UserByUUID(ctx context.Context, uuid string) (*auth.User, error)
	UserByEmail(ctx context.Context, email string) (*auth.User, error)
	CreateUser(ctx context.Context, email, password string, role auth.Role, status auth.Status) (*auth.User, error)
	VerifyLogin(ctx context.Context, email, password string) (*auth.User, error)
	AllUsers(ctx context.Context) ([]*auth.User, error)
}

// HandlerProperties contains configuration for the HTTP handler
type HandlerProperties struct {
	Authenticator *auth.Authenticator
	Tokens        *token.Store
	Sessions      *session.Manager
	Users         UserStore
	TokenTTL      time.Duration
	Logger        *logger.GatedLogger
}

// Handler creates and returns the main HTTP handler for Notary.
func Handler(props *HandlerProperties) http.Handler {
	mux := http.NewServeMux()
	log := props.Logger

	// Authorization webhook called by the GraphQL engine on every
	// request that carries no admin secret.
	mux.Handle("/v1/auth/webhook", handleWebhook(props, log))

	// Account lifecycle endpoints.
	mux.Handle("/v1/auth/login", handleLogin(props, log))
	mux.Handle("/v1/auth/logout", handleLogout(props, log))
	mux.Handle("/v1/auth/join", handleJoin(props, log))
	mux.Handle("/v1/auth/me", handleMe(props, log))

	// System endpoints.
	mux.Handle("/v1/sys/health", handleHealth(props, log))
	mux.Handle("/v1/sys/metrics", handleMetrics(props))

	return wrapGenericHandler(mux)
}

// wrapGenericHandler rejects anything outside the versioned API space
// before it reaches a route.
func wrapGenericHandler(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/") {
			respondError(w, http.StatusNotFound, "path must begin with /v1/")
			return
		}

		handler.ServeHTTP(w, r)
	})
}
