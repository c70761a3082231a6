package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attester/internal/platform/middleware"
)

// RouterConfig carries everything the router needs beyond the handlers
// themselves.
type RouterConfig struct {
	Users          *UserHandler
	Admin          *AdminHandler
	SessionTokens  middleware.SessionTokenValidator
	AdminUser      string
	AdminPassword  string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter assembles the full HTTP surface. The user flow past session
// creation requires a session token; the operator surface sits behind basic
// auth.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.Get("/session", cfg.Users.handleCreateSession)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(cfg.SessionTokens, cfg.Logger))

			r.Post("/session", cfg.Users.handleConfirmSession)
			r.Post("/terms", cfg.Users.handleTerms)
			r.Post("/request-attestation", cfg.Users.handleRequestAttestation)
			r.Post("/pay", cfg.Users.handlePay)
		})

		r.Route("/credentials", func(r chi.Router) {
			r.Use(middleware.RequireBasicAuth(cfg.AdminUser, cfg.AdminPassword, cfg.Logger))

			r.Get("/", cfg.Admin.handleList)
			r.Get("/{credentialID}", cfg.Admin.handleGet)
			r.Delete("/{credentialID}", cfg.Admin.handleReject)
			r.Post("/{credentialID}/attest", cfg.Admin.handleAttest)
			r.Post("/{credentialID}/revoke", cfg.Admin.handleRevoke)
		})
	})

	return r
}
