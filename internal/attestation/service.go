// Package attestation turns admin decisions into ledger transactions: it
// builds attestation extrinsics, authorizes them with the attester DID and
// fee payer, submits them, and reflects confirmed chain state back to the
// caller.
package attestation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"attester/internal/chain"
	"attester/internal/claim"
	"attester/internal/keys"
	"attester/internal/platform/metrics"
	dErrors "attester/pkg/domain-errors"
	"attester/pkg/platform/sentinel"
)

// ErrAttestationNotFound marks the inconsistency where the chain acknowledged
// a revoke but the post-revoke query found no attestation record. It must be
// surfaced, never swallowed.
var ErrAttestationNotFound = errors.New("attestation not found on chain")

// Service submits attest and revoke transactions. It performs no
// deduplication against double submission; callers must check current state
// first and serialize per credential.
type Service struct {
	chain   chain.Client
	keyring *keys.Keyring
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewService(chainClient chain.Client, keyring *keys.Keyring, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		chain:   chainClient,
		keyring: keyring,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("attester/attestation"),
	}
}

// Attest registers an attestation for the credential's claim hash and returns
// the record as confirmed by the chain (revoked=false). A rejected or failed
// submission surfaces as chain_failure; nothing is retried.
func (s *Service) Attest(ctx context.Context, credential claim.Credential) (chain.Attestation, error) {
	claimHash := credential.RootHash
	cTypeHash := credential.Claim.CTypeHash

	ctx, span := s.tracer.Start(ctx, "attestation.attest",
		trace.WithAttributes(attribute.String("claim_hash", claimHash)))
	defer span.End()

	call := chain.AddAttestationCall(claimHash, cTypeHash)
	if err := s.submit(ctx, call); err != nil {
		span.RecordError(err)
		return chain.Attestation{}, err
	}

	attestation, err := s.chain.QueryAttestation(ctx, claimHash)
	if err != nil {
		span.RecordError(err)
		return chain.Attestation{}, dErrors.Wrap(err, dErrors.CodeChainFailure, "attestation missing after submission")
	}

	s.logger.InfoContext(ctx, "attestation registered",
		"claim_hash", claimHash,
		"ctype_hash", cTypeHash,
	)
	return attestation, nil
}

// Revoke submits a revoke transaction for the credential's claim hash, then
// re-queries chain state. A missing post-revoke record is an inconsistency
// reported as ErrAttestationNotFound.
func (s *Service) Revoke(ctx context.Context, credential claim.Credential) (chain.Attestation, error) {
	claimHash := credential.RootHash

	ctx, span := s.tracer.Start(ctx, "attestation.revoke",
		trace.WithAttributes(attribute.String("claim_hash", claimHash)))
	defer span.End()

	call := chain.RevokeAttestationCall(claimHash)
	if err := s.submit(ctx, call); err != nil {
		span.RecordError(err)
		return chain.Attestation{}, err
	}

	attestation, err := s.chain.QueryAttestation(ctx, claimHash)
	if errors.Is(err, sentinel.ErrNotFound) {
		span.RecordError(err)
		return chain.Attestation{}, dErrors.Wrap(ErrAttestationNotFound, dErrors.CodeChainFailure, "post-revoke chain state inconsistent")
	}
	if err != nil {
		span.RecordError(err)
		return chain.Attestation{}, dErrors.Wrap(err, dErrors.CodeChainFailure, "query attestation state")
	}

	s.logger.InfoContext(ctx, "attestation revoked", "claim_hash", claimHash)
	return attestation, nil
}

// submit authorizes a call with the assertion key and fee payer, then blocks
// until the ledger acknowledges it.
func (s *Service) submit(ctx context.Context, call chain.Call) error {
	payer := s.keyring.PayerAddress()
	payload := chain.SigningPayload(call, payer)

	didSig, err := s.keyring.Sign(payload, keys.AssertionMethod)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "authorize extrinsic")
	}

	ext := chain.Extrinsic{
		Call:  call,
		Payer: payer,
		DIDSignature: chain.Signature{
			Signature: didSig.Signature,
			KeyURI:    didSig.KeyURI.String(),
		},
		PayerSignature: s.keyring.SignWithPayer(payload),
	}

	start := time.Now()
	err = s.chain.Submit(ctx, ext)
	s.metrics.ChainSubmitDuration.Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		s.metrics.ChainFailures.Inc()
		s.logger.ErrorContext(ctx, "chain submission failed",
			"call", call.Module+"."+call.Method,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeChainFailure, "chain submission failed")
	}
	return nil
}
