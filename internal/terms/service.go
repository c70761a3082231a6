// Package terms negotiates issuance terms with a wallet: it builds the
// signed quote offer for a requested claim type and handles the wallet's
// answer, the encrypted request-attestation message.
package terms

import (
	"context"
	"log/slog"
	"time"

	"attester/internal/audit"
	"attester/internal/claim"
	"attester/internal/ctype"
	"attester/internal/keys"
	"attester/internal/message"
	"attester/internal/platform/metrics"
	"attester/internal/session"
	dErrors "attester/pkg/domain-errors"
	"attester/pkg/requestcontext"
)

// TermsAndConditionsURI is the fixed terms document every quote points at.
const TermsAndConditionsURI = "https://example.com/terms-and-conditions"

// Outcome is the result of handling an inbound protocol message. Rejection is
// a negotiated outcome, distinct from every failure.
type Outcome int

const (
	// OutcomeStaged means the credential was verified and staged on the
	// session, awaiting payment.
	OutcomeStaged Outcome = iota
	// OutcomeRejected means the wallet terminated the flow with a rejection
	// message.
	OutcomeRejected
)

// Service builds term offers and processes attestation requests.
type Service struct {
	codec     *message.Codec
	keyring   *keys.Keyring
	sessions  *session.Service
	publisher *audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	quoteTTL  time.Duration
}

func NewService(
	codec *message.Codec,
	keyring *keys.Keyring,
	sessions *session.Service,
	publisher *audit.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	quoteTTL time.Duration,
) *Service {
	return &Service{
		codec:     codec,
		keyring:   keyring,
		sessions:  sessions,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		quoteTTL:  quoteTTL,
	}
}

// BuildTerms constructs the submit-terms offer for a requested claim type:
// the drafted claim, a freshly signed quote with a bounded validity window,
// and the schema, all encrypted to the session's peer key. Quotes are never
// reused; every call prices and signs anew.
func (s *Service) BuildTerms(ctx context.Context, sess *session.Session, claimTypeKey string, contents claim.Contents) (message.Envelope, error) {
	key, err := ctype.ParseKey(claimTypeKey)
	if err != nil {
		return message.Envelope{}, err
	}
	ct := ctype.Supported[key]

	drafted, err := claim.New(ct, contents, sess.DID)
	if err != nil {
		return message.Envelope{}, err
	}

	cost := ctype.Cost[key]
	quote := claim.Quote{
		AttesterDid:        s.keyring.DID(),
		CTypeHash:          ct.Hash(),
		Cost:               claim.Cost{Net: cost, Gross: cost, Tax: map[string]int{"VAT": 0}},
		Currency:           ctype.Currency,
		Timeframe:          requestcontext.Now(ctx).Add(s.quoteTTL),
		TermsAndConditions: TermsAndConditionsURI,
	}

	signature, err := s.keyring.Sign(quote.SigningPayload(), keys.AssertionMethod)
	if err != nil {
		return message.Envelope{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign quote")
	}

	signed := &claim.SignedQuote{
		Quote: quote,
		AttesterSignature: claim.Signature{
			Signature: signature.Signature,
			KeyURI:    signature.KeyURI.String(),
		},
	}

	s.logger.DebugContext(ctx, "terms built",
		"claim_type", string(key),
		"session_id", sess.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)

	return s.codec.EncryptBody(&message.SubmitTerms{
		Claim:         drafted,
		Legitimations: []claim.Credential{},
		Quote:         signed,
		CTypes:        []ctype.CType{ct},
	}, sess.EncryptionKeyURI)
}

// HandleAttestationRequest decrypts and dispatches the wallet's answer to a
// terms offer. A rejection body ends the flow as OutcomeRejected; a
// request-attestation body is verified (quote agreement, claim type support,
// credential well-formedness) and its credential staged on the session. Any
// other type is unexpected at this step.
func (s *Service) HandleAttestationRequest(ctx context.Context, sess *session.Session, envelope message.Envelope) (Outcome, error) {
	body, err := s.codec.DecryptBody(envelope)
	if err != nil {
		return 0, err
	}

	if message.IsRejection(body) {
		s.metrics.TermsRejected.Inc()
		s.publisher.Emit(ctx, audit.Event{
			Action:    audit.ActionTermsRejected,
			Actor:     sess.DID.String(),
			RequestID: requestcontext.RequestID(ctx),
		})
		s.logger.DebugContext(ctx, "wallet rejected terms",
			"session_id", sess.ID.String(),
			"message_type", string(body.MessageType()),
		)
		return OutcomeRejected, nil
	}

	request, ok := body.(*message.RequestAttestation)
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeBadRequest, "unexpected message type %q at this step", body.MessageType())
	}

	if request.Quote != nil {
		if err := s.verifyQuoteAgreement(ctx, request.Quote, request.Credential.RootHash); err != nil {
			return 0, err
		}
	}

	ct, supported := ctype.ByHash(request.Credential.Claim.CTypeHash)
	if !supported {
		return 0, dErrors.New(dErrors.CodeForbidden, "unsupported claim type")
	}

	if err := request.Credential.VerifyWellFormed(ct); err != nil {
		return 0, err
	}

	if err := s.sessions.AttachCredential(ctx, sess.ID, request.Credential); err != nil {
		return 0, err
	}

	s.logger.DebugContext(ctx, "credential staged for payment",
		"session_id", sess.ID.String(),
		"root_hash", request.Credential.RootHash,
	)
	return OutcomeStaged, nil
}

// verifyQuoteAgreement checks that the echoed quote really is the attester's:
// valid assertion-key signature, unexpired validity window, and binding to
// the credential being submitted.
func (s *Service) verifyQuoteAgreement(ctx context.Context, agreement *claim.QuoteAgreement, rootHash string) error {
	if !s.keyring.Verify(agreement.Quote.SigningPayload(), agreement.AttesterSignature.Signature, keys.AssertionMethod) {
		return dErrors.New(dErrors.CodeCryptoFailure, "quote signature verification failed")
	}
	if agreement.Quote.Expired(requestcontext.Now(ctx)) {
		return dErrors.New(dErrors.CodeInvalidInput, "quote validity window has passed")
	}
	if agreement.RootHash != "" && agreement.RootHash != rootHash {
		return dErrors.New(dErrors.CodeInvalidInput, "quote agreement is bound to a different claim")
	}
	return nil
}
