package credential

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"attester/internal/audit"
	"attester/internal/chain"
	"attester/internal/claim"
	"attester/internal/platform/metrics"
	id "attester/pkg/domain"
	dErrors "attester/pkg/domain-errors"
	"attester/pkg/platform/sentinel"
	"attester/pkg/requestcontext"
)

// Attester is the ledger-facing dependency of the lifecycle service.
type Attester interface {
	Attest(ctx context.Context, credential claim.Credential) (chain.Attestation, error)
	Revoke(ctx context.Context, credential claim.Credential) (chain.Attestation, error)
}

// Service drives the credential state machine:
// Pending → Attested → Revoked, Pending → Deleted. Mutations of one
// credential id are serialized through a keyed mutex so two concurrent
// attests cannot double-submit a ledger transaction and a revoke cannot race
// a delete.
type Service struct {
	store     Store
	attester  Attester
	publisher *audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	locks     keyedLocks
}

func NewService(store Store, attester Attester, publisher *audit.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		attester:  attester,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Accept persists a paid-for credential as a pending record and returns it.
// This is the ownership transfer point: after Accept, the store holds the
// authoritative copy.
func (s *Service) Accept(ctx context.Context, credential claim.Credential) (*Record, error) {
	record := &Record{
		ID:    id.NewCredentialID(),
		Claim: credential,
	}
	if err := s.store.Add(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store credential")
	}

	s.metrics.CredentialsSubmitted.Inc()
	s.publisher.Emit(ctx, audit.Event{
		Action:       audit.ActionCredentialSubmitted,
		CredentialID: record.ID.String(),
		ClaimHash:    credential.RootHash,
		RequestID:    requestcontext.RequestID(ctx),
	})
	return record, nil
}

// Get loads one credential record.
func (s *Service) Get(ctx context.Context, credentialID id.CredentialID) (*Record, error) {
	record, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		return nil, s.classify(err)
	}
	return record, nil
}

// List returns all credential records.
func (s *Service) List(ctx context.Context) ([]*Record, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list credentials")
	}
	return records, nil
}

// Reject permanently deletes a record. Intended for pending credentials; the
// transition is terminal.
func (s *Service) Reject(ctx context.Context, credentialID id.CredentialID) error {
	unlock := s.locks.lock(credentialID)
	defer unlock()

	if err := s.store.Delete(ctx, credentialID); err != nil {
		return s.classify(err)
	}

	s.metrics.CredentialsRejected.Inc()
	s.publisher.Emit(ctx, audit.Event{
		Action:       audit.ActionCredentialRejected,
		CredentialID: credentialID.String(),
		RequestID:    requestcontext.RequestID(ctx),
	})
	return nil
}

// Attest submits an attestation for a pending credential and records the
// confirmed chain state. Attesting a non-pending credential is a conflict;
// the state check runs under the per-id lock, before any ledger submission.
func (s *Service) Attest(ctx context.Context, credentialID id.CredentialID) (*Record, error) {
	unlock := s.locks.lock(credentialID)
	defer unlock()

	record, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		return nil, s.classify(err)
	}
	if !record.Pending() {
		return nil, dErrors.New(dErrors.CodeConflict, "credential is already attested")
	}

	attestation, err := s.attester.Attest(ctx, record.Claim)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.SetAttestation(ctx, credentialID, attestation)
	if err != nil {
		return nil, s.classify(err)
	}

	s.metrics.CredentialsAttested.Inc()
	s.publisher.Emit(ctx, audit.Event{
		Action:       audit.ActionCredentialAttested,
		CredentialID: credentialID.String(),
		ClaimHash:    attestation.ClaimHash,
		RequestID:    requestcontext.RequestID(ctx),
	})
	return updated, nil
}

// Revoke revokes an attested credential's attestation. Revoking an already
// revoked credential is an idempotent no-op returning the current record;
// revoking a pending one is a conflict. The revoked flag only ever moves
// false→true.
func (s *Service) Revoke(ctx context.Context, credentialID id.CredentialID) (*Record, error) {
	unlock := s.locks.lock(credentialID)
	defer unlock()

	record, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		return nil, s.classify(err)
	}
	if record.Pending() {
		return nil, dErrors.New(dErrors.CodeConflict, "credential is not attested")
	}
	if record.Revoked() {
		return record, nil
	}

	attestation, err := s.attester.Revoke(ctx, record.Claim)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.SetAttestation(ctx, credentialID, attestation)
	if err != nil {
		return nil, s.classify(err)
	}

	s.metrics.CredentialsRevoked.Inc()
	s.publisher.Emit(ctx, audit.Event{
		Action:       audit.ActionCredentialRevoked,
		CredentialID: credentialID.String(),
		ClaimHash:    attestation.ClaimHash,
		RequestID:    requestcontext.RequestID(ctx),
	})
	return updated, nil
}

func (s *Service) classify(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, "invalid credential state transition")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "credential store failure")
	}
}

// keyedLocks hands out one mutex per credential id. Entries are never
// reclaimed; the map is bounded by the number of credentials the process has
// touched.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[id.CredentialID]*sync.Mutex
}

func (k *keyedLocks) lock(credentialID id.CredentialID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[id.CredentialID]*sync.Mutex)
	}
	lock, ok := k.locks[credentialID]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[credentialID] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
