package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"attester/internal/claim"
	"attester/internal/credential"
	"attester/internal/keys"
	"attester/internal/message"
	"attester/internal/session"
	"attester/internal/terms"
	dErrors "attester/pkg/domain-errors"
	"attester/pkg/requestcontext"
)

// CredentialAcceptor is the slice of the credential service the user surface
// needs: persisting a paid-for credential.
type CredentialAcceptor interface {
	Accept(ctx context.Context, c claim.Credential) (*credential.Record, error)
}

// UserHandler serves the wallet-facing claim flow: session handshake, terms,
// attestation request, and payment.
type UserHandler struct {
	sessions    *session.Service
	terms       *terms.Service
	credentials CredentialAcceptor
	logger      *slog.Logger
}

func NewUserHandler(sessions *session.Service, termsService *terms.Service, credentials CredentialAcceptor, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		sessions:    sessions,
		terms:       termsService,
		credentials: credentials,
		logger:      logger,
	}
}

type sessionResponse struct {
	SessionID        string `json:"sessionId"`
	Token            string `json:"token"`
	DID              string `json:"did"`
	EncryptionKeyURI string `json:"encryptionKeyUri"`
	Challenge        string `json:"challenge"`
}

// handleCreateSession is phase one of the handshake: a fresh session with a
// challenge the wallet must echo back encrypted.
func (h *UserHandler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	descriptor, err := h.sessions.Create(r.Context())
	if err != nil {
		h.logError(r, "failed to create session", err)
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, sessionResponse{
		SessionID:        descriptor.SessionID.String(),
		Token:            descriptor.Token,
		DID:              descriptor.DID.String(),
		EncryptionKeyURI: descriptor.EncryptionKeyURI.String(),
		Challenge:        descriptor.Challenge,
	})
}

type confirmSessionRequest struct {
	EncryptionKeyURI   string `json:"encryptionKeyUri"`
	EncryptedChallenge []byte `json:"encryptedChallenge"`
	Nonce              []byte `json:"nonce"`
}

// handleConfirmSession is phase two: the wallet proves control of its
// encryption key.
func (h *UserHandler) handleConfirmSession(w http.ResponseWriter, r *http.Request) {
	sessionID := requestcontext.SessionID(r.Context())

	var req confirmSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	err := h.sessions.Confirm(r.Context(), sessionID, keys.KeyURI(req.EncryptionKeyURI), req.EncryptedChallenge, req.Nonce)
	if err != nil {
		h.logWarn(r, "session confirmation rejected", err)
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type termsRequest struct {
	Type          string         `json:"type"`
	ClaimContents claim.Contents `json:"claimContents"`
}

// handleTerms builds and returns the encrypted submit-terms offer.
func (h *UserHandler) handleTerms(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.confirmedSession(w, r)
	if !ok {
		return
	}

	var req termsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	envelope, err := h.terms.BuildTerms(r.Context(), sess, req.Type, req.ClaimContents)
	if err != nil {
		h.logWarn(r, "failed to build terms", err)
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, envelope)
}

// handleRequestAttestation receives the wallet's encrypted answer to a terms
// offer. A rejection body maps to 409; a staged credential to 204.
func (h *UserHandler) handleRequestAttestation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.confirmedSession(w, r)
	if !ok {
		return
	}

	var envelope message.Envelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	outcome, err := h.terms.HandleAttestationRequest(r.Context(), sess, envelope)
	if err != nil {
		h.logWarn(r, "attestation request rejected", err)
		WriteError(w, err)
		return
	}

	switch outcome {
	case terms.OutcomeRejected:
		WriteJSON(w, http.StatusConflict, map[string]string{"error": "message contains rejection"})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePay mocks payment processing: the staged credential moves from the
// session into the credential store. Consuming first keeps a double pay from
// storing the credential twice; if the store write then fails, the credential
// is re-staged so a retried payment can still succeed.
func (h *UserHandler) handlePay(w http.ResponseWriter, r *http.Request) {
	sessionID := requestcontext.SessionID(r.Context())

	staged, err := h.sessions.ConsumeCredential(r.Context(), sessionID)
	if err != nil {
		h.logWarn(r, "payment without staged credential", err)
		WriteError(w, err)
		return
	}

	if _, err := h.credentials.Accept(r.Context(), staged); err != nil {
		if restoreErr := h.sessions.AttachCredential(r.Context(), sessionID, staged); restoreErr != nil {
			h.logError(r, "failed to re-stage credential after store failure", restoreErr)
		}
		h.logError(r, "failed to store paid credential", err)
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// confirmedSession loads the request's session and requires a completed
// handshake.
func (h *UserHandler) confirmedSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sessionID := requestcontext.SessionID(r.Context())
	sess, err := h.sessions.GetConfirmed(r.Context(), sessionID)
	if err != nil {
		h.logWarn(r, "session lookup failed", err)
		WriteError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *UserHandler) logWarn(r *http.Request, msg string, err error) {
	h.logger.WarnContext(r.Context(), msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(r.Context()),
	)
}

func (h *UserHandler) logError(r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(r.Context()),
	)
}
