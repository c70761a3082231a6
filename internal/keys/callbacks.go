package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// NonceSize is the NaCl box nonce length in bytes.
const NonceSize = 24

var (
	// ErrUnsupportedRelationship is returned when signing is requested with
	// the delegation role, which the attester does not provision.
	ErrUnsupportedRelationship = errors.New("unsupported key relationship")

	// ErrDecryptionFailed is returned when an envelope fails authentication or
	// was not produced for this key pair. Tampering surfaces here, never as
	// corrupted plaintext.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// SignResult carries a detached signature together with the key that made it.
type SignResult struct {
	Signature []byte
	KeyType   string
	KeyURI    KeyURI
}

// EncryptResult carries a sealed box addressed to a single peer key.
type EncryptResult struct {
	Ciphertext []byte
	Nonce      [NonceSize]byte
	KeyURI     KeyURI
}

// Sign signs the payload with the key for the given relationship. The switch
// is exhaustive over the closed Relationship set; capabilityDelegation is
// rejected, keyAgreement is not a signing key.
func (k *Keyring) Sign(payload []byte, rel Relationship) (SignResult, error) {
	var key ed25519.PrivateKey
	switch rel {
	case Authentication:
		key = k.authentication
	case AssertionMethod:
		key = k.assertion
	case KeyAgreement:
		return SignResult{}, fmt.Errorf("%w: keyAgreement cannot sign", ErrUnsupportedRelationship)
	case CapabilityDelegation:
		return SignResult{}, fmt.Errorf("%w: delegation not supported", ErrUnsupportedRelationship)
	default:
		return SignResult{}, fmt.Errorf("%w: %d", ErrUnsupportedRelationship, rel)
	}

	uri, err := k.KeyURIFor(rel)
	if err != nil {
		return SignResult{}, err
	}

	return SignResult{
		Signature: ed25519.Sign(key, payload),
		KeyType:   "ed25519",
		KeyURI:    uri,
	}, nil
}

// SignWithPayer signs a ledger payload with the fee payer account key. The
// payer is an account, not a DID key relationship, so it has its own path.
func (k *Keyring) SignWithPayer(payload []byte) []byte {
	return ed25519.Sign(k.payer, payload)
}

// Verify checks a detached signature made by the key of the given
// relationship. Used by the ledger for DID authorization and by the terms flow
// to verify quote agreements.
func (k *Keyring) Verify(payload, signature []byte, rel Relationship) bool {
	pub, err := k.PublicKeyFor(rel)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, payload, signature)
}

// Encrypt seals the plaintext for the peer's public key using the attester's
// keyAgreement secret (X25519-XSalsa20-Poly1305). The nonce is random per
// call.
func (k *Keyring) Encrypt(plaintext []byte, peerPublicKey [32]byte) (EncryptResult, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return EncryptResult{}, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := box.Seal(nil, plaintext, &nonce, &peerPublicKey, &k.agreementPriv)

	return EncryptResult{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		KeyURI:     k.EncryptionKeyURI(),
	}, nil
}

// Decrypt opens a box sealed by the peer for the attester's keyAgreement key.
// Any authentication failure yields ErrDecryptionFailed.
func (k *Keyring) Decrypt(ciphertext []byte, nonce [NonceSize]byte, peerPublicKey [32]byte) ([]byte, error) {
	plaintext, ok := box.Open(nil, ciphertext, &nonce, &peerPublicKey, &k.agreementPriv)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
