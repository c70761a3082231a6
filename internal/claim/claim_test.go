package claim

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attester/internal/ctype"
	id "attester/pkg/domain"
	dErrors "attester/pkg/domain-errors"
)

const testOwner = id.DID("did:claimer:4q7J3mNv")

func emailClaim(t *testing.T) Claim {
	t.Helper()
	c, err := New(ctype.Supported[ctype.KeyEmail], Contents{"Email": "alice@example.com"}, testOwner)
	require.NoError(t, err)
	return c
}

func TestNewClaim(t *testing.T) {
	ct := ctype.Supported[ctype.KeyEmail]

	t.Run("accepts contents matching the schema", func(t *testing.T) {
		c, err := New(ct, Contents{"Email": "alice@example.com"}, testOwner)
		require.NoError(t, err)
		assert.Equal(t, ct.Hash(), c.CTypeHash)
		assert.Equal(t, testOwner, c.Owner)
	})

	t.Run("rejects empty contents", func(t *testing.T) {
		_, err := New(ct, Contents{}, testOwner)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects undeclared property", func(t *testing.T) {
		_, err := New(ct, Contents{"Phone": "555-1234"}, testOwner)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects property of the wrong type", func(t *testing.T) {
		_, err := New(ct, Contents{"Email": 42.0}, testOwner)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestClaimVerify(t *testing.T) {
	t.Run("claim against the wrong claim type fails", func(t *testing.T) {
		c := emailClaim(t)
		err := c.Verify(ctype.Supported[ctype.KeyTwitter])
		require.Error(t, err)
	})

	t.Run("round-tripped claim still verifies", func(t *testing.T) {
		c := emailClaim(t)
		require.NoError(t, c.Verify(ctype.Supported[ctype.KeyEmail]))
	})
}

func TestRootHash(t *testing.T) {
	t.Run("deterministic for equal claims", func(t *testing.T) {
		a := emailClaim(t)
		b := emailClaim(t)
		assert.Equal(t, a.RootHash(), b.RootHash())
		assert.True(t, strings.HasPrefix(a.RootHash(), "0x"))
	})

	t.Run("changes when contents change", func(t *testing.T) {
		a := emailClaim(t)
		b := a
		b.Contents = Contents{"Email": "mallory@example.com"}
		assert.NotEqual(t, a.RootHash(), b.RootHash())
	})

	t.Run("changes when owner changes", func(t *testing.T) {
		a := emailClaim(t)
		b := a
		b.Owner = id.DID("did:claimer:someoneelse")
		assert.NotEqual(t, a.RootHash(), b.RootHash())
	})
}

func TestCredentialVerifyWellFormed(t *testing.T) {
	ct := ctype.Supported[ctype.KeyEmail]

	t.Run("accepts intact credential", func(t *testing.T) {
		c := emailClaim(t)
		cred := Credential{Claim: c, RootHash: c.RootHash()}
		require.NoError(t, cred.VerifyWellFormed(ct))
	})

	t.Run("rejects root hash not matching the claim", func(t *testing.T) {
		c := emailClaim(t)
		cred := Credential{Claim: c, RootHash: "0x0000"}
		err := cred.VerifyWellFormed(ct)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects claim altered after hashing", func(t *testing.T) {
		c := emailClaim(t)
		cred := Credential{Claim: c, RootHash: c.RootHash()}
		cred.Claim.Contents = Contents{"Email": "mallory@example.com"}
		require.Error(t, cred.VerifyWellFormed(ct))
	})
}

func TestQuoteExpired(t *testing.T) {
	now := time.Now()
	quote := Quote{Timeframe: now.Add(time.Hour)}

	assert.False(t, quote.Expired(now))
	assert.False(t, quote.Expired(now.Add(time.Hour)))
	assert.True(t, quote.Expired(now.Add(time.Hour+time.Second)))
}

func TestQuoteSigningPayload(t *testing.T) {
	quote := Quote{
		AttesterDid: id.DID("did:attester:abc"),
		CTypeHash:   "0x01",
		Cost:        Cost{Net: 2, Gross: 2, Tax: map[string]int{"VAT": 0}},
		Currency:    "KILT",
		Timeframe:   time.Unix(1700000000, 0).UTC(),
	}

	assert.Equal(t, quote.SigningPayload(), quote.SigningPayload())

	altered := quote
	altered.Cost.Gross = 3
	assert.NotEqual(t, quote.SigningPayload(), altered.SigningPayload())
}
