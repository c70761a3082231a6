package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// RequireBasicAuth gates the admin surface with HTTP basic auth. Credential
// comparison is constant time to avoid leaking prefixes.
func RequireBasicAuth(username, password string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
			if !ok || !userOK || !passOK {
				logger.WarnContext(r.Context(), "admin credentials rejected",
					"request_id", GetRequestID(r.Context()),
				)
				w.Header().Set("WWW-Authenticate", `Basic realm="attester admin"`)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
