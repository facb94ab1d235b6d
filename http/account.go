package http

import (
	"errors"
	"net/http"

	"github.com/stephnangue/notary/auth"
	"github.com/stephnangue/notary/auth/session"
	"github.com/stephnangue/notary/auth/token"
	"github.com/stephnangue/notary/logger"
)

// userResponse is the account shape returned to clients. The role travels
// as its lowercase name, the same claim the authorization webhook issues.
type userResponse struct {
	UUID      string `json:"uuid"`
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func toUserResponse(u *auth.User) *userResponse {
	return &userResponse{
		UUID:      u.UUID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role.String(),
	}
}

// handleLogin verifies a password and opens a session with a token bound
// into it. A valid existing token is reused rather than replaced, so a
// user logging in from a second device does not invalidate the first.
func handleLogin(props *HandlerProperties, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Remember bool   `json:"remember"`
		}
		if !decodeJSONBody(w, r, &body) {
			return
		}
		if body.Email == "" || body.Password == "" {
			respondError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		user, err := props.Users.VerifyLogin(r.Context(), body.Email, body.Password)
		if err != nil {
			log.Error("login verification failed", logger.Err(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if user == nil || user.Status == auth.StatusBanned {
			respondError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}

		t, err := props.Tokens.Create(r.Context(), user.UUID, token.TypeAuth, props.TokenTTL, false)
		if err != nil {
			log.Error("failed to issue login token", logger.Err(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		rec := &session.Record{UserUUID: user.UUID, Token: t, Remember: body.Remember}
		if err := props.Sessions.Write(w, rec); err != nil {
			log.Error("failed to write session cookie", logger.Err(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		log.Info("user logged in", logger.String("user_uuid", user.UUID))
		respondOk(w, toUserResponse(user))
	})
}

// handleLogout revokes the session's token and drops the cookie. Token
// revocation is best effort: the cookie dies either way, and a token left
// behind still dies at its own expiry.
func handleLogout(props *HandlerProperties, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if rec := props.Sessions.Read(r); rec != nil && rec.Token != nil {
			if err := props.Tokens.Revoke(r.Context(), rec.Token); err != nil {
				log.Warn("failed to revoke token at logout",
					logger.String("user_uuid", rec.UserUUID),
					logger.Err(err))
			}
		}

		props.Sessions.Destroy(w)
		respondOk(w, map[string]any{"logged_out": true})
	})
}

// handleJoin registers a new account and opens a session for it.
//
// The requested role is checked against the caller: granting a role takes
// a session whose own role already holds that privilege. Anonymous
// registration only ever yields the least privileged role, and the check
// fails closed when the caller's session cannot be authenticated.
func handleJoin(props *HandlerProperties, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Role     *int   `json:"role"`
			Remember bool   `json:"remember"`
		}
		if !decodeJSONBody(w, r, &body) {
			return
		}
		if body.Email == "" || body.Password == "" {
			respondError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		role := auth.RoleUser
		if body.Role != nil && auth.Role(*body.Role) != auth.RoleUser {
			requested := auth.Role(*body.Role)
			if !requested.Valid() {
				respondError(w, http.StatusBadRequest, "invalid role")
				return
			}

			caller, err := props.Authenticator.Authenticate(r.Context(), props.Sessions.Read(r))
			if err != nil || !caller.Authenticated() || !auth.RoleAtLeast(caller.User.Role, requested) {
				respondError(w, http.StatusForbidden, "not allowed to grant that role")
				return
			}
			role = requested
		}

		existing, err := props.Users.UserByEmail(r.Context(), body.Email)
		if err != nil {
			log.Error("registration lookup failed", logger.Err(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if existing != nil {
			respondError(w, http.StatusConflict, "a user already exists with this email")
			return
		}

		user, err := props.Users.CreateUser(r.Context(), body.Email, body.Password, role, auth.StatusUnconfirmed)
		if err != nil {
			log.Error("registration failed", logger.Err(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		t, err := props.Tokens.Create(r.Context(), user.UUID, token.TypeAuth, props.TokenTTL, false)
		if err != nil {
			log.Error("failed to issue token for new user", logger.Err(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if err := props.Sessions.Write(w, &session.Record{UserUUID: user.UUID, Token: t, Remember: body.Remember}); err != nil {
			log.Error("failed to write session cookie", logger.Err(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		respondOk(w, toUserResponse(user))
	})
}

// handleMe returns the calling user and keeps their session fresh: when
// authentication had to recover a missing or expiring token, the renewed
// session is committed on the way out.
func handleMe(props *HandlerProperties, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		rec := props.Sessions.Read(r)
		decision, err := props.Authenticator.Authenticate(r.Context(), rec)
		if err != nil {
			if errors.Is(err, auth.ErrNoSession) {
				respondError(w, http.StatusUnauthorized, "not logged in")
				return
			}
			log.Error("authentication failed", logger.Err(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if !decision.Authenticated() {
			// A dead session cookie is dropped so the client does not
			// keep presenting it.
			props.Sessions.Destroy(w)
			respondError(w, http.StatusUnauthorized, "not logged in")
			return
		}

		if decision.Renewed {
			rec.Token = decision.Token
			if err := props.Sessions.Write(w, rec); err != nil {
				log.Warn("failed to commit renewed session", logger.Err(err))
			}
		}

		respondOk(w, map[string]any{
			"user":          toUserResponse(decision.User),
			"token_expires": decision.Token.Expires,
		})
	})
}
