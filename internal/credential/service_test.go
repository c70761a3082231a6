package credential_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attester/internal/attestation"
	"attester/internal/audit"
	"attester/internal/chain"
	"attester/internal/claim"
	"attester/internal/credential"
	"attester/internal/ctype"
	"attester/internal/keys"
	"attester/internal/platform/metrics"
	id "attester/pkg/domain"
	dErrors "attester/pkg/domain-errors"
)

const (
	credAuthSeed      = "1f8c3e7a9d2b4f60a1c5e8d3b7f92046c3a1d5e9f2b60487a9c1e3d5f7b90284"
	credAssertionSeed = "2a9d4f71b3c5e806d2f4a6c8e0b3d5f7a9c1e3d5f7b9028461f8c3e7a9d2b4f6"
	credAgreementSeed = "3b0e5a82c4d6f917e3a5b7d9f1c4e6a8b0d2f4a6c8e0b3d5f72046c3a1d5e9f2"
	credPayerSeed     = "4c1f6b93d5e70a28f4b6c8e0a2d5f7b9c1e3d5f7b90284a6c8e0b3d5f7a9c1e3"
)

func testLifecycleService(t *testing.T) *credential.Service {
	t.Helper()

	keyring, err := keys.NewKeyring(credAuthSeed, credAssertionSeed, credAgreementSeed, credPayerSeed)
	require.NoError(t, err)

	ledger := chain.NewInMemoryLedger()
	ledger.RegisterAttester(keyring.DID())
	ledger.RegisterPayer(keyring.PayerAddress(), keyring.PayerPublicKey())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	publisher := audit.NewPublisher(16, logger)
	attester := attestation.NewService(ledger, keyring, m, logger)

	return credential.NewService(credential.NewInMemoryStore(), attester, publisher, m, logger)
}

func paidCredential(t *testing.T, email string) claim.Credential {
	t.Helper()
	c, err := claim.New(ctype.Supported[ctype.KeyEmail], claim.Contents{"Email": email}, id.DID("did:claimer:abc"))
	require.NoError(t, err)
	return claim.Credential{Claim: c, RootHash: c.RootHash()}
}

func TestServiceAccept(t *testing.T) {
	svc := testLifecycleService(t)
	ctx := context.Background()

	record, err := svc.Accept(ctx, paidCredential(t, "alice@example.com"))
	require.NoError(t, err)
	assert.False(t, record.ID.IsNil())
	assert.True(t, record.Pending())

	loaded, err := svc.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, loaded.ID)
	assert.True(t, loaded.Pending())
}

func TestServiceGet(t *testing.T) {
	svc := testLifecycleService(t)

	_, err := svc.Get(context.Background(), id.NewCredentialID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestServiceReject(t *testing.T) {
	svc := testLifecycleService(t)
	ctx := context.Background()

	t.Run("rejection removes the record", func(t *testing.T) {
		record, err := svc.Accept(ctx, paidCredential(t, "alice@example.com"))
		require.NoError(t, err)

		require.NoError(t, svc.Reject(ctx, record.ID))

		_, err = svc.Get(ctx, record.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("rejecting a missing record is not found", func(t *testing.T) {
		err := svc.Reject(ctx, id.NewCredentialID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestServiceLifecycle(t *testing.T) {
	svc := testLifecycleService(t)
	ctx := context.Background()

	record, err := svc.Accept(ctx, paidCredential(t, "alice@example.com"))
	require.NoError(t, err)

	attested, err := svc.Attest(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, attested.Attestation)
	assert.False(t, attested.Attestation.Revoked)
	assert.Equal(t, record.Claim.RootHash, attested.Attestation.ClaimHash)

	revoked, err := svc.Revoke(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, revoked.Attestation)
	assert.True(t, revoked.Attestation.Revoked)

	// A second revoke is an idempotent no-op returning the current record.
	again, err := svc.Revoke(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, again.Revoked())
	assert.Equal(t, revoked.Attestation, again.Attestation)
}

func TestServiceAttest(t *testing.T) {
	svc := testLifecycleService(t)
	ctx := context.Background()

	t.Run("attesting a missing record is not found", func(t *testing.T) {
		_, err := svc.Attest(ctx, id.NewCredentialID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("attesting twice is a conflict", func(t *testing.T) {
		record, err := svc.Accept(ctx, paidCredential(t, "bob@example.com"))
		require.NoError(t, err)

		_, err = svc.Attest(ctx, record.ID)
		require.NoError(t, err)

		_, err = svc.Attest(ctx, record.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func TestServiceRevoke(t *testing.T) {
	svc := testLifecycleService(t)
	ctx := context.Background()

	t.Run("revoking a pending record is a conflict", func(t *testing.T) {
		record, err := svc.Accept(ctx, paidCredential(t, "carol@example.com"))
		require.NoError(t, err)

		_, err = svc.Revoke(ctx, record.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("revoking a missing record is not found", func(t *testing.T) {
		_, err := svc.Revoke(ctx, id.NewCredentialID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
