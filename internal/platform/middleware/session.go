package middleware

import (
	"log/slog"
	"net/http"

	id "attester/pkg/domain"
	"attester/pkg/requestcontext"
)

// SessionTokenHeader carries the signed session token on authenticated
// requests; session identity never travels in the JSON body.
const SessionTokenHeader = "X-Session-Token"

// SessionTokenValidator validates a session token and returns the session id
// it is bound to.
type SessionTokenValidator interface {
	ValidateToken(token string) (id.SessionID, error)
}

// RequireSession validates the session token header and injects the session id
// into the request context. Requests without a valid token are rejected before
// any handler logic runs.
func RequireSession(validator SessionTokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(SessionTokenHeader)
			if token == "" {
				logger.WarnContext(r.Context(), "missing session token",
					"request_id", GetRequestID(r.Context()),
				)
				writeUnauthorized(w, "session token required")
				return
			}

			sessionID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "invalid session token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				writeUnauthorized(w, "invalid or expired session token")
				return
			}

			ctx := requestcontext.WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
