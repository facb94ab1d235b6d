package http

import (
	"net/http"

	"github.com/stephnangue/notary/auth/token"
	"github.com/stephnangue/notary/helper"
	"github.com/stephnangue/notary/logger"
)

const (
	headerUserID = "X-Hasura-User-Id"
	headerRole   = "X-Hasura-Role"
)

// webhookResponse is the session-variable payload the GraphQL engine
// expects on a 200.
type webhookResponse struct {
	Role   string `json:"X-Hasura-Role"`
	UserID string `json:"X-Hasura-User-Id"`
}

// handleWebhook authorizes one GraphQL request on behalf of the engine.
//
// The claimed user id arrives in a client-controlled header, so it proves
// nothing by itself; the request is only accepted when the Authorization
// header exactly matches a stored, unexpired token of that user. Every
// rejection is the same generic 401: the caller learns nothing about
// which check failed, the operator reads the reason from the debug log.
//
// This path never mints or renews tokens. A webhook that could create
// credentials as a side effect of checking them would turn every probe
// into a session.
func handleWebhook(props *HandlerProperties, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		// Rejections all look alike on the wire, so each check gets a
		// correlatable id in the debug log instead.
		checkID := helper.GenerateRequestID()

		authHeader := r.Header.Get("Authorization")
		claimedUUID := r.Header.Get(headerUserID)

		if authHeader == "" || claimedUUID == "" {
			log.Debug("webhook rejected: user id and / or auth header missing",
				logger.String("check_id", checkID))
			respondUnauthenticated(w)
			return
		}

		user, err := props.Users.UserByUUID(r.Context(), claimedUUID)
		if err != nil {
			log.Error("webhook user lookup failed",
				logger.String("check_id", checkID),
				logger.Err(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if user == nil {
			log.Debug("webhook rejected: unknown user",
				logger.String("check_id", checkID),
				logger.String("user_uuid", claimedUUID))
			respondUnauthenticated(w)
			return
		}

		tokens, err := props.Tokens.GetAllValid(r.Context(), claimedUUID, token.TypeAuth)
		if err != nil {
			log.Error("webhook token lookup failed",
				logger.String("check_id", checkID),
				logger.Err(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		// Around a renewal both the old and the new token are live, and
		// either one must authorize: rejecting the old token the moment
		// a new one exists races against in-flight requests.
		matched := false
		for _, t := range tokens {
			if t.Value == authHeader {
				matched = true
				break
			}
		}

		if !matched {
			log.Debug("webhook rejected: no valid token matches auth header",
				logger.String("check_id", checkID),
				logger.String("user_uuid", claimedUUID),
				logger.String("presented_hash", helper.Get8BytesHash(authHeader)),
				logger.Int("live_tokens", len(tokens)))
			respondUnauthenticated(w)
			return
		}

		respondOk(w, &webhookResponse{
			Role:   user.Role.String(),
			UserID: user.UUID,
		})
	})
}

// respondUnauthenticated writes the one rejection every failed webhook
// check shares.
func respondUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"message":"Unauthenticated"}`))
}
