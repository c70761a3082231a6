package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attester/internal/credential"
	id "attester/pkg/domain"
	dErrors "attester/pkg/domain-errors"
	"attester/pkg/requestcontext"
)

// AdminHandler serves the operator surface: inspecting stored credentials and
// driving the attest / revoke / reject transitions.
type AdminHandler struct {
	credentials *credential.Service
	logger      *slog.Logger
}

func NewAdminHandler(credentials *credential.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{credentials: credentials, logger: logger}
}

// handleList returns every stored credential keyed by id.
func (h *AdminHandler) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.credentials.List(r.Context())
	if err != nil {
		h.logError(r, "failed to list credentials", err)
		WriteError(w, err)
		return
	}

	byID := make(map[string]*credential.Record, len(records))
	for _, record := range records {
		byID[record.ID.String()] = record
	}
	WriteJSON(w, http.StatusOK, byID)
}

func (h *AdminHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	credentialID, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	record, err := h.credentials.Get(r.Context(), credentialID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

// handleReject removes a pending credential without touching the chain.
func (h *AdminHandler) handleReject(w http.ResponseWriter, r *http.Request) {
	credentialID, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	if err := h.credentials.Reject(r.Context(), credentialID); err != nil {
		h.logWarn(r, "failed to reject credential", err)
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleAttest(w http.ResponseWriter, r *http.Request) {
	credentialID, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	record, err := h.credentials.Attest(r.Context(), credentialID)
	if err != nil {
		h.logError(r, "failed to attest credential", err)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

func (h *AdminHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	credentialID, ok := h.credentialID(w, r)
	if !ok {
		return
	}

	record, err := h.credentials.Revoke(r.Context(), credentialID)
	if err != nil {
		h.logError(r, "failed to revoke credential", err)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

func (h *AdminHandler) credentialID(w http.ResponseWriter, r *http.Request) (id.CredentialID, bool) {
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "credentialID"))
	if err != nil {
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid credential id"))
		return id.CredentialID{}, false
	}
	return credentialID, true
}

func (h *AdminHandler) logWarn(r *http.Request, msg string, err error) {
	h.logger.WarnContext(r.Context(), msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(r.Context()),
	)
}

func (h *AdminHandler) logError(r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(r.Context()),
	)
}
