package http

import (
	"net/http"

	"github.com/stephnangue/notary/logger"
)

// handleHealth probes the backend with a cheap query so orchestrators
// only route traffic to instances that can actually reach the store.
func handleHealth(props *HandlerProperties, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if _, err := props.Users.AllUsers(r.Context()); err != nil {
			log.Error("healthcheck failed", logger.Err(err))
			respondError(w, http.StatusInternalServerError, "backend unreachable")
			return
		}

		respondOk(w, map[string]string{"status": "ok"})
	})
}

// handleMetrics exposes the token store counters.
func handleMetrics(props *HandlerProperties) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		respondOk(w, props.Tokens.GetMetrics())
	})
}
