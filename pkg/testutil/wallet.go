package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"

	"attester/internal/keys"
	"attester/internal/message"
	id "attester/pkg/domain"
)

// Wallet is the claimer side of the protocol for tests: its own DID, a
// signing key, and an X25519 key agreement pair it uses to open the
// attester's envelopes and seal its own.
type Wallet struct {
	DID id.DID

	signPub  ed25519.PublicKey
	signPriv ed25519.PrivateKey

	agreementPub  [32]byte
	agreementPriv [32]byte
}

func NewWallet(t *testing.T) *Wallet {
	t.Helper()

	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var agreementPriv [32]byte
	_, err = rand.Read(agreementPriv[:])
	require.NoError(t, err)

	agreementPubRaw, err := curve25519.X25519(agreementPriv[:], curve25519.Basepoint)
	require.NoError(t, err)

	w := &Wallet{
		DID:           id.DID("did:claimer:" + base58.Encode(signPub)),
		signPub:       signPub,
		signPriv:      signPriv,
		agreementPriv: agreementPriv,
	}
	copy(w.agreementPub[:], agreementPubRaw)
	return w
}

// EncryptionKeyURI is the wallet's self-certifying keyAgreement key URI.
func (w *Wallet) EncryptionKeyURI() keys.KeyURI {
	return keys.NewKeyURI(w.DID, w.agreementPub[:])
}

// Sign produces a detached signature with the wallet's signing key.
func (w *Wallet) Sign(payload []byte) []byte {
	return ed25519.Sign(w.signPriv, payload)
}

// Seal encrypts plaintext for the peer key encoded in receiverKeyURI.
func (w *Wallet) Seal(t *testing.T, plaintext []byte, receiverKeyURI keys.KeyURI) (ciphertext, nonce []byte) {
	t.Helper()

	peerPub := w.peerPublicKey(t, receiverKeyURI)

	var n [keys.NonceSize]byte
	_, err := rand.Read(n[:])
	require.NoError(t, err)

	return box.Seal(nil, plaintext, &n, &peerPub, &w.agreementPriv), n[:]
}

// SealBody encodes a protocol body and seals it into an envelope addressed to
// receiverKeyURI.
func (w *Wallet) SealBody(t *testing.T, body message.Body, receiverKeyURI keys.KeyURI) message.Envelope {
	t.Helper()

	plaintext, err := message.EncodeBody(body)
	require.NoError(t, err)

	ciphertext, nonce := w.Seal(t, plaintext, receiverKeyURI)
	return message.Envelope{
		Ciphertext:     ciphertext,
		Nonce:          nonce,
		SenderKeyURI:   w.EncryptionKeyURI(),
		ReceiverKeyURI: receiverKeyURI,
	}
}

// OpenBody opens an envelope the attester addressed to this wallet and
// decodes the protocol body inside.
func (w *Wallet) OpenBody(t *testing.T, envelope message.Envelope) message.Body {
	t.Helper()

	require.Equal(t, w.EncryptionKeyURI(), envelope.ReceiverKeyURI, "envelope not addressed to this wallet")
	peerPub := w.peerPublicKey(t, envelope.SenderKeyURI)

	var n [keys.NonceSize]byte
	require.Len(t, envelope.Nonce, keys.NonceSize)
	copy(n[:], envelope.Nonce)

	plaintext, ok := box.Open(nil, envelope.Ciphertext, &n, &peerPub, &w.agreementPriv)
	require.True(t, ok, "failed to open envelope")

	body, err := message.DecodeBody(plaintext)
	require.NoError(t, err)
	return body
}

func (w *Wallet) peerPublicKey(t *testing.T, uri keys.KeyURI) [32]byte {
	t.Helper()

	raw, err := uri.PublicKey()
	require.NoError(t, err)
	require.Len(t, raw, 32)

	var pub [32]byte
	copy(pub[:], raw)
	return pub
}
