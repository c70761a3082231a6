package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"attester/internal/claim"
	"attester/internal/keys"
	"attester/internal/platform/metrics"
	id "attester/pkg/domain"
	dErrors "attester/pkg/domain-errors"
	"attester/pkg/platform/sentinel"
	"attester/pkg/requestcontext"
)

const challengeSize = 32

// Service drives the two-phase session handshake and owns the staged
// credential slot. Phase one creates a session with a fresh challenge; phase
// two proves the wallet controls its encryption key by returning the
// challenge encrypted to the attester.
type Service struct {
	store   Store
	keyring *keys.Keyring
	tokens  *TokenService
	metrics *metrics.Metrics
	logger  *slog.Logger
	ttl     time.Duration
}

func NewService(store Store, keyring *keys.Keyring, tokens *TokenService, m *metrics.Metrics, logger *slog.Logger, ttl time.Duration) *Service {
	return &Service{
		store:   store,
		keyring: keyring,
		tokens:  tokens,
		metrics: m,
		logger:  logger,
		ttl:     ttl,
	}
}

// Descriptor is what phase one hands the wallet: who the attester is, where
// to encrypt to, and the challenge to echo back.
type Descriptor struct {
	SessionID        id.SessionID
	Token            string
	DID              id.DID
	EncryptionKeyURI keys.KeyURI
	Challenge        string
}

// Create starts a session: fresh unguessable id, fresh challenge, bounded
// lifetime.
func (s *Service) Create(ctx context.Context) (Descriptor, error) {
	challenge := make([]byte, challengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return Descriptor{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate challenge")
	}

	now := requestcontext.Now(ctx)
	session := &Session{
		ID:        id.NewSessionID(),
		Challenge: "0x" + hex.EncodeToString(challenge),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.store.Save(ctx, session); err != nil {
		return Descriptor{}, dErrors.Wrap(err, dErrors.CodeInternal, "save session")
	}

	token, err := s.tokens.GenerateToken(session.ID)
	if err != nil {
		return Descriptor{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}

	s.metrics.SessionsCreated.Inc()
	s.logger.DebugContext(ctx, "session created",
		"session_id", session.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)

	return Descriptor{
		SessionID:        session.ID,
		Token:            token,
		DID:              s.keyring.DID(),
		EncryptionKeyURI: s.keyring.EncryptionKeyURI(),
		Challenge:        session.Challenge,
	}, nil
}

// Confirm is phase two: the wallet presents its encryption key URI and the
// session challenge encrypted to the attester. Decrypting it with the wallet's
// public key proves key control; a challenge mismatch or decryption failure
// rejects the handshake without extending any trust.
func (s *Service) Confirm(ctx context.Context, sessionID id.SessionID, encryptionKeyURI keys.KeyURI, encryptedChallenge, nonce []byte) error {
	peerDID := encryptionKeyURI.DID()
	if !peerDID.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "encryption key URI carries no valid DID")
	}

	rawPub, err := encryptionKeyURI.PublicKey()
	if err != nil || len(rawPub) != 32 {
		return dErrors.New(dErrors.CodeInvalidInput, "encryption key URI carries no valid key")
	}
	var peerPub [32]byte
	copy(peerPub[:], rawPub)

	if len(nonce) != keys.NonceSize {
		return dErrors.Newf(dErrors.CodeInvalidInput, "nonce must be %d bytes", keys.NonceSize)
	}
	var boxNonce [keys.NonceSize]byte
	copy(boxNonce[:], nonce)

	challenge, err := s.keyring.Decrypt(encryptedChallenge, boxNonce, peerPub)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeCryptoFailure, "failed to decrypt challenge")
	}

	_, err = s.store.Execute(ctx, sessionID, func(session *Session) error {
		if subtle.ConstantTimeCompare(challenge, []byte(session.Challenge)) != 1 {
			return dErrors.New(dErrors.CodeCryptoFailure, "challenge mismatch")
		}
		session.DID = peerDID
		session.EncryptionKeyURI = encryptionKeyURI
		session.Confirmed = true
		return nil
	})
	if err != nil {
		return s.classify(err, "confirm session")
	}

	s.logger.DebugContext(ctx, "session confirmed",
		"session_id", sessionID.String(),
		"peer_did", peerDID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Get loads a confirmed or unconfirmed session.
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, s.classify(err, "load session")
	}
	return session, nil
}

// GetConfirmed loads a session and requires the handshake to have completed.
func (s *Service) GetConfirmed(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Confirmed {
		return nil, dErrors.New(dErrors.CodeForbidden, "session handshake not completed")
	}
	return session, nil
}

// AttachCredential stages a verified credential on the session. Last write
// wins: re-submitting replaces the staged credential.
func (s *Service) AttachCredential(ctx context.Context, sessionID id.SessionID, credential claim.Credential) error {
	_, err := s.store.Execute(ctx, sessionID, func(session *Session) error {
		session.Credential = &credential
		return nil
	})
	if err != nil {
		return s.classify(err, "attach credential")
	}
	return nil
}

// ConsumeCredential takes the staged credential off the session, failing if
// none is staged. The caller persists it; the session is no longer the
// authoritative copy afterwards.
func (s *Service) ConsumeCredential(ctx context.Context, sessionID id.SessionID) (claim.Credential, error) {
	var credential claim.Credential
	_, err := s.store.Execute(ctx, sessionID, func(session *Session) error {
		if session.Credential == nil {
			return fmt.Errorf("%w: no credential staged", sentinel.ErrInvalidState)
		}
		credential = *session.Credential
		session.Credential = nil
		return nil
	})
	if err != nil {
		return claim.Credential{}, s.classify(err, "consume credential")
	}
	return credential, nil
}

func (s *Service) classify(err error, op string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrExpired):
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeBadRequest, "session has no staged credential")
	case dErrors.HasCode(err, dErrors.CodeCryptoFailure),
		dErrors.HasCode(err, dErrors.CodeInvalidInput),
		dErrors.HasCode(err, dErrors.CodeForbidden):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+op)
	}
}
