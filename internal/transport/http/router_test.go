package httpapi_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attester/internal/attestation"
	"attester/internal/audit"
	"attester/internal/chain"
	"attester/internal/claim"
	"attester/internal/credential"
	"attester/internal/keys"
	"attester/internal/message"
	"attester/internal/platform/metrics"
	"attester/internal/session"
	"attester/internal/terms"
	httpapi "attester/internal/transport/http"
	dErrors "attester/pkg/domain-errors"
	"attester/pkg/testutil"
)

const (
	apiAuthSeed      = "1f8c3e7a9d2b4f60a1c5e8d3b7f92046c3a1d5e9f2b60487a9c1e3d5f7b90284"
	apiAssertionSeed = "2a9d4f71b3c5e806d2f4a6c8e0b3d5f7a9c1e3d5f7b9028461f8c3e7a9d2b4f6"
	apiAgreementSeed = "3b0e5a82c4d6f917e3a5b7d9f1c4e6a8b0d2f4a6c8e0b3d5f72046c3a1d5e9f2"
	apiPayerSeed     = "4c1f6b93d5e70a28f4b6c8e0a2d5f7b9c1e3d5f7b90284a6c8e0b3d5f7a9c1e3"

	adminUser = "admin"
	adminPass = "test-password"
)

type app struct {
	router  http.Handler
	keyring *keys.Keyring
}

func newApp(t *testing.T) *app {
	return newAppWith(t, func(acceptor httpapi.CredentialAcceptor) httpapi.CredentialAcceptor {
		return acceptor
	})
}

// newAppWith lets a test interpose on the credential acceptor, e.g. to
// simulate a store outage during payment.
func newAppWith(t *testing.T, wrap func(httpapi.CredentialAcceptor) httpapi.CredentialAcceptor) *app {
	t.Helper()

	keyring, err := keys.NewKeyring(apiAuthSeed, apiAssertionSeed, apiAgreementSeed, apiPayerSeed)
	require.NoError(t, err)

	ledger := chain.NewInMemoryLedger()
	ledger.RegisterAttester(keyring.DID())
	ledger.RegisterPayer(keyring.PayerAddress(), keyring.PayerPublicKey())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	publisher := audit.NewPublisher(16, logger)
	tokens := session.NewTokenService("test-secret", time.Hour)
	sessions := session.NewService(session.NewInMemoryStore(), keyring, tokens, m, logger, time.Hour)
	codec := message.NewCodec(keyring)

	attester := attestation.NewService(ledger, keyring, m, logger)
	credentials := credential.NewService(credential.NewInMemoryStore(), attester, publisher, m, logger)
	termsService := terms.NewService(codec, keyring, sessions, publisher, m, logger, 5*time.Hour)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Users:          httpapi.NewUserHandler(sessions, termsService, wrap(credentials), logger),
		Admin:          httpapi.NewAdminHandler(credentials, logger),
		SessionTokens:  tokens,
		AdminUser:      adminUser,
		AdminPassword:  adminPass,
		RequestTimeout: 5 * time.Second,
		Logger:         logger,
	})

	return &app{router: router, keyring: keyring}
}

type sessionResponse struct {
	SessionID        string `json:"sessionId"`
	Token            string `json:"token"`
	DID              string `json:"did"`
	EncryptionKeyURI string `json:"encryptionKeyUri"`
	Challenge        string `json:"challenge"`
}

type confirmRequest struct {
	EncryptionKeyURI   string `json:"encryptionKeyUri"`
	EncryptedChallenge []byte `json:"encryptedChallenge"`
	Nonce              []byte `json:"nonce"`
}

func (a *app) createSession(t *testing.T) *sessionResponse {
	t.Helper()
	rr := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return testutil.UnmarshalResponse[sessionResponse](t, rr)
}

// handshake runs both phases and returns the session token and the wallet.
func (a *app) handshake(t *testing.T) (string, *testutil.Wallet) {
	t.Helper()
	wallet := testutil.NewWallet(t)

	sess := a.createSession(t)
	assert.Equal(t, a.keyring.DID().String(), sess.DID)

	ciphertext, nonce := wallet.Seal(t, []byte(sess.Challenge), keys.KeyURI(sess.EncryptionKeyURI))
	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/session", confirmRequest{
		EncryptionKeyURI:   wallet.EncryptionKeyURI().String(),
		EncryptedChallenge: ciphertext,
		Nonce:              nonce,
	})
	req.Header.Set("X-Session-Token", sess.Token)

	rr := testutil.DoRequest(a.router, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	return sess.Token, wallet
}

// requestTerms runs the terms step and returns the decrypted offer.
func (a *app) requestTerms(t *testing.T, token string, wallet *testutil.Wallet, claimType string, contents claim.Contents) *message.SubmitTerms {
	t.Helper()

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/terms", map[string]any{
		"type":          claimType,
		"claimContents": contents,
	})
	req.Header.Set("X-Session-Token", token)

	rr := testutil.DoRequest(a.router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	envelope := testutil.UnmarshalResponse[message.Envelope](t, rr)
	offer, ok := wallet.OpenBody(t, *envelope).(*message.SubmitTerms)
	require.True(t, ok)
	return offer
}

// submitBody seals a protocol body and posts it as the wallet's answer to a
// terms offer.
func (a *app) submitBody(t *testing.T, token string, wallet *testutil.Wallet, body message.Body) *httptest.ResponseRecorder {
	t.Helper()
	envelope := wallet.SealBody(t, body, a.keyring.EncryptionKeyURI())
	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/request-attestation", envelope)
	req.Header.Set("X-Session-Token", token)
	return testutil.DoRequest(a.router, req)
}

func (a *app) pay(t *testing.T, token string) int {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/pay", nil)
	req.Header.Set("X-Session-Token", token)
	return testutil.DoRequest(a.router, req).Code
}

func (a *app) admin(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	req.SetBasicAuth(adminUser, adminPass)
	return req
}

// submitCredential walks the whole wallet flow up to payment and returns the
// stored record's id.
func (a *app) submitCredential(t *testing.T) string {
	t.Helper()

	token, wallet := a.handshake(t)
	offer := a.requestTerms(t, token, wallet, "email", claim.Contents{"Email": "alice@example.com"})

	cred := claim.Credential{Claim: offer.Claim, RootHash: offer.Claim.RootHash()}
	result := a.submitBody(t, token, wallet, &message.RequestAttestation{Credential: cred})
	require.Equal(t, http.StatusNoContent, result.Code)

	require.Equal(t, http.StatusNoContent, a.pay(t, token))

	rr := testutil.DoRequest(a.router, a.admin(t, http.MethodGet, "/api/credentials/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	records := testutil.UnmarshalResponse[map[string]credential.Record](t, rr)

	for recordID, record := range *records {
		if record.Claim.RootHash == cred.RootHash {
			return recordID
		}
	}
	t.Fatal("submitted credential not found in admin listing")
	return ""
}

func TestSessionEndpoints(t *testing.T) {
	t.Run("session creation returns the attester identity and a challenge", func(t *testing.T) {
		a := newApp(t)
		sess := a.createSession(t)

		assert.NotEmpty(t, sess.SessionID)
		assert.NotEmpty(t, sess.Token)
		assert.Equal(t, a.keyring.DID().String(), sess.DID)
		assert.Equal(t, a.keyring.EncryptionKeyURI().String(), sess.EncryptionKeyURI)
		assert.NotEmpty(t, sess.Challenge)
	})

	t.Run("confirming without a token is unauthorized", func(t *testing.T) {
		a := newApp(t)
		rr := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodPost, "/api/session", confirmRequest{}))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("confirming with a wrong challenge fails", func(t *testing.T) {
		a := newApp(t)
		wallet := testutil.NewWallet(t)
		sess := a.createSession(t)

		ciphertext, nonce := wallet.Seal(t, []byte("0xwrong"), keys.KeyURI(sess.EncryptionKeyURI))
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/session", confirmRequest{
			EncryptionKeyURI:   wallet.EncryptionKeyURI().String(),
			EncryptedChallenge: ciphertext,
			Nonce:              nonce,
		})
		req.Header.Set("X-Session-Token", sess.Token)

		rr := testutil.DoRequest(a.router, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTermsEndpoint(t *testing.T) {
	t.Run("terms for an email claim are priced at 2", func(t *testing.T) {
		a := newApp(t)
		token, wallet := a.handshake(t)

		offer := a.requestTerms(t, token, wallet, "email", claim.Contents{"Email": "alice@example.com"})
		require.NotNil(t, offer.Quote)
		assert.Equal(t, 2, offer.Quote.Cost.Gross)
		assert.Equal(t, "KILT", offer.Quote.Currency)
		assert.Equal(t, wallet.DID, offer.Claim.Owner)
	})

	t.Run("terms before the handshake completes are forbidden", func(t *testing.T) {
		a := newApp(t)
		sess := a.createSession(t)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/terms", map[string]any{
			"type":          "email",
			"claimContents": claim.Contents{"Email": "alice@example.com"},
		})
		req.Header.Set("X-Session-Token", sess.Token)

		rr := testutil.DoRequest(a.router, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("an unsupported claim type is rejected", func(t *testing.T) {
		a := newApp(t)
		token, _ := a.handshake(t)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/terms", map[string]any{
			"type":          "github",
			"claimContents": claim.Contents{"Login": "alice"},
		})
		req.Header.Set("X-Session-Token", token)

		rr := testutil.DoRequest(a.router, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRequestAttestationEndpoint(t *testing.T) {
	t.Run("a valid credential is staged", func(t *testing.T) {
		a := newApp(t)
		token, wallet := a.handshake(t)
		offer := a.requestTerms(t, token, wallet, "email", claim.Contents{"Email": "alice@example.com"})

		cred := claim.Credential{Claim: offer.Claim, RootHash: offer.Claim.RootHash()}
		result := a.submitBody(t, token, wallet, &message.RequestAttestation{Credential: cred})
		assert.Equal(t, http.StatusNoContent, result.Code)
	})

	t.Run("a rejection message maps to 409", func(t *testing.T) {
		a := newApp(t)
		token, wallet := a.handshake(t)

		result := a.submitBody(t, token, wallet, &message.RejectTerms{Message: "no thanks"})
		assert.Equal(t, http.StatusConflict, result.Code)
	})

	t.Run("a tampered envelope maps to 400", func(t *testing.T) {
		a := newApp(t)
		token, wallet := a.handshake(t)
		offer := a.requestTerms(t, token, wallet, "email", claim.Contents{"Email": "alice@example.com"})

		cred := claim.Credential{Claim: offer.Claim, RootHash: offer.Claim.RootHash()}
		envelope := wallet.SealBody(t, &message.RequestAttestation{Credential: cred}, a.keyring.EncryptionKeyURI())
		envelope.Ciphertext[0] ^= 0x01

		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/request-attestation", envelope)
		req.Header.Set("X-Session-Token", token)

		rr := testutil.DoRequest(a.router, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestPayEndpoint(t *testing.T) {
	t.Run("payment moves the credential into the store", func(t *testing.T) {
		a := newApp(t)
		recordID := a.submitCredential(t)
		assert.NotEmpty(t, recordID)
	})

	t.Run("paying twice fails the second time", func(t *testing.T) {
		a := newApp(t)
		token, wallet := a.handshake(t)
		offer := a.requestTerms(t, token, wallet, "email", claim.Contents{"Email": "alice@example.com"})

		cred := claim.Credential{Claim: offer.Claim, RootHash: offer.Claim.RootHash()}
		result := a.submitBody(t, token, wallet, &message.RequestAttestation{Credential: cred})
		require.Equal(t, http.StatusNoContent, result.Code)

		require.Equal(t, http.StatusNoContent, a.pay(t, token))
		assert.Equal(t, http.StatusBadRequest, a.pay(t, token))
	})

	t.Run("paying with nothing staged fails", func(t *testing.T) {
		a := newApp(t)
		token, _ := a.handshake(t)
		assert.Equal(t, http.StatusBadRequest, a.pay(t, token))
	})

	t.Run("a failed store write keeps the credential payable", func(t *testing.T) {
		flaky := &flakyAcceptor{failures: 1}
		a := newAppWith(t, func(acceptor httpapi.CredentialAcceptor) httpapi.CredentialAcceptor {
			flaky.next = acceptor
			return flaky
		})

		token, wallet := a.handshake(t)
		offer := a.requestTerms(t, token, wallet, "email", claim.Contents{"Email": "alice@example.com"})

		cred := claim.Credential{Claim: offer.Claim, RootHash: offer.Claim.RootHash()}
		result := a.submitBody(t, token, wallet, &message.RequestAttestation{Credential: cred})
		require.Equal(t, http.StatusNoContent, result.Code)

		require.Equal(t, http.StatusServiceUnavailable, a.pay(t, token))
		assert.Equal(t, http.StatusNoContent, a.pay(t, token))
		assert.Equal(t, http.StatusBadRequest, a.pay(t, token))
	})
}

// flakyAcceptor fails the first failures Accept calls, then delegates.
type flakyAcceptor struct {
	next     httpapi.CredentialAcceptor
	failures int
}

func (f *flakyAcceptor) Accept(ctx context.Context, c claim.Credential) (*credential.Record, error) {
	if f.failures > 0 {
		f.failures--
		return nil, dErrors.New(dErrors.CodeUnavailable, "credential store unavailable")
	}
	return f.next.Accept(ctx, c)
}

func TestAdminEndpoints(t *testing.T) {
	t.Run("admin surface requires credentials", func(t *testing.T) {
		a := newApp(t)
		rr := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodGet, "/api/credentials/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		req := testutil.NewJSONRequest(t, http.MethodGet, "/api/credentials/", nil)
		req.SetBasicAuth(adminUser, "wrong")
		rr = testutil.DoRequest(a.router, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("attest then revoke, with the second revoke a no-op", func(t *testing.T) {
		a := newApp(t)
		recordID := a.submitCredential(t)

		rr := testutil.DoRequest(a.router, a.admin(t, http.MethodPost, "/api/credentials/"+recordID+"/attest", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		attested := testutil.UnmarshalResponse[credential.Record](t, rr)
		require.NotNil(t, attested.Attestation)
		assert.False(t, attested.Attestation.Revoked)

		rr = testutil.DoRequest(a.router, a.admin(t, http.MethodPost, "/api/credentials/"+recordID+"/revoke", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		revoked := testutil.UnmarshalResponse[credential.Record](t, rr)
		require.NotNil(t, revoked.Attestation)
		assert.True(t, revoked.Attestation.Revoked)

		rr = testutil.DoRequest(a.router, a.admin(t, http.MethodPost, "/api/credentials/"+recordID+"/revoke", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		again := testutil.UnmarshalResponse[credential.Record](t, rr)
		require.NotNil(t, again.Attestation)
		assert.True(t, again.Attestation.Revoked)
	})

	t.Run("revoking an unattested credential is a conflict", func(t *testing.T) {
		a := newApp(t)
		recordID := a.submitCredential(t)

		rr := testutil.DoRequest(a.router, a.admin(t, http.MethodPost, "/api/credentials/"+recordID+"/revoke", nil))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("rejecting a pending credential removes it", func(t *testing.T) {
		a := newApp(t)
		recordID := a.submitCredential(t)

		rr := testutil.DoRequest(a.router, a.admin(t, http.MethodDelete, "/api/credentials/"+recordID, nil))
		require.Equal(t, http.StatusNoContent, rr.Code)

		rr = testutil.DoRequest(a.router, a.admin(t, http.MethodGet, "/api/credentials/"+recordID, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("unknown ids are not found", func(t *testing.T) {
		a := newApp(t)

		rr := testutil.DoRequest(a.router, a.admin(t, http.MethodPost, "/api/credentials/b3b0a0f4-9f3e-4a5f-9d5e-111111111111/attest", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("a malformed id is a bad request", func(t *testing.T) {
		a := newApp(t)

		rr := testutil.DoRequest(a.router, a.admin(t, http.MethodGet, "/api/credentials/not-an-id", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHealthz(t *testing.T) {
	a := newApp(t)
	rr := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
