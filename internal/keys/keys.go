// Package keys holds the attester's key material and the crypto callbacks the
// messaging protocol is keyed to. Four key pairs are derived once at startup
// from configured seeds: authentication and assertionMethod (ed25519),
// keyAgreement (X25519 for NaCl box), and the fee payer account (ed25519).
//
// Key URIs are self-certifying: the fragment encodes the public key itself
// (multibase-style, "z" + base58), so a peer's encryption key is recoverable
// from its key URI without a resolver.
package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/curve25519"

	id "attester/pkg/domain"
)

const (
	didMethodPrefix = "did:attester:"

	// SeedSize is the required byte length of every key seed.
	SeedSize = 32
)

// KeyURI locates one key of a DID document, e.g. "did:attester:4q7…#z6Mk…".
type KeyURI string

func (u KeyURI) String() string {
	return string(u)
}

// DID returns the DID part of the key URI.
func (u KeyURI) DID() id.DID {
	s, _, _ := strings.Cut(string(u), "#")
	return id.DID(s)
}

// PublicKey recovers the raw public key encoded in the URI fragment.
func (u KeyURI) PublicKey() ([]byte, error) {
	_, frag, found := strings.Cut(string(u), "#")
	if !found || !strings.HasPrefix(frag, "z") {
		return nil, fmt.Errorf("key URI %q has no key fragment", u)
	}
	pub, err := base58.Decode(strings.TrimPrefix(frag, "z"))
	if err != nil {
		return nil, fmt.Errorf("decode key fragment: %w", err)
	}
	return pub, nil
}

// NewKeyURI builds the key URI for a public key under the given DID.
func NewKeyURI(did id.DID, pub []byte) KeyURI {
	return KeyURI(fmt.Sprintf("%s#z%s", did, base58.Encode(pub)))
}

// Keyring is the immutable key material context constructed once at startup
// and passed by reference to every component that signs or encrypts.
type Keyring struct {
	did id.DID

	authentication ed25519.PrivateKey
	assertion      ed25519.PrivateKey
	payer          ed25519.PrivateKey

	agreementPriv [32]byte
	agreementPub  [32]byte
}

// NewKeyring derives the four key pairs from hex-encoded 32 byte seeds. The
// DID is derived from the authentication public key, so the same seeds always
// yield the same identity.
func NewKeyring(authSeed, assertionSeed, agreementSeed, payerSeed string) (*Keyring, error) {
	auth, err := ed25519FromSeed("authentication", authSeed)
	if err != nil {
		return nil, err
	}
	assertion, err := ed25519FromSeed("assertionMethod", assertionSeed)
	if err != nil {
		return nil, err
	}
	payer, err := ed25519FromSeed("payer", payerSeed)
	if err != nil {
		return nil, err
	}

	agreementSeedBytes, err := decodeSeed("keyAgreement", agreementSeed)
	if err != nil {
		return nil, err
	}

	k := &Keyring{
		authentication: auth,
		assertion:      assertion,
		payer:          payer,
	}
	copy(k.agreementPriv[:], agreementSeedBytes)
	agreementPub, err := curve25519.X25519(k.agreementPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive keyAgreement public key: %w", err)
	}
	copy(k.agreementPub[:], agreementPub)

	authPub := auth.Public().(ed25519.PublicKey)
	k.did = id.DID(didMethodPrefix + base58.Encode(authPub))

	return k, nil
}

// DID returns the attester's own decentralized identifier.
func (k *Keyring) DID() id.DID {
	return k.did
}

// KeyURIFor resolves the attester's own DID-relative key URI for a
// relationship. CapabilityDelegation has no provisioned key.
func (k *Keyring) KeyURIFor(rel Relationship) (KeyURI, error) {
	pub, err := k.publicKey(rel)
	if err != nil {
		return "", err
	}
	return NewKeyURI(k.did, pub), nil
}

// EncryptionKeyURI is the key URI peers address envelopes to.
func (k *Keyring) EncryptionKeyURI() KeyURI {
	return NewKeyURI(k.did, k.agreementPub[:])
}

// EncryptionPublicKey exposes the keyAgreement public key for the session
// handshake response.
func (k *Keyring) EncryptionPublicKey() [32]byte {
	return k.agreementPub
}

// PayerAddress is the fee payer account address used to author extrinsics.
func (k *Keyring) PayerAddress() string {
	return base58.Encode(k.payer.Public().(ed25519.PublicKey))
}

// PayerPublicKey exposes the payer verification key for ledger-side checks.
func (k *Keyring) PayerPublicKey() ed25519.PublicKey {
	return k.payer.Public().(ed25519.PublicKey)
}

// PublicKeyFor exposes the verification key for a signing relationship so the
// ledger (or a peer) can verify DID signatures.
func (k *Keyring) PublicKeyFor(rel Relationship) (ed25519.PublicKey, error) {
	switch rel {
	case Authentication:
		return k.authentication.Public().(ed25519.PublicKey), nil
	case AssertionMethod:
		return k.assertion.Public().(ed25519.PublicKey), nil
	case KeyAgreement, CapabilityDelegation:
		return nil, fmt.Errorf("%s is not a signing relationship", rel)
	default:
		return nil, fmt.Errorf("unknown key relationship %d", rel)
	}
}

func (k *Keyring) publicKey(rel Relationship) ([]byte, error) {
	switch rel {
	case Authentication:
		return k.authentication.Public().(ed25519.PublicKey), nil
	case AssertionMethod:
		return k.assertion.Public().(ed25519.PublicKey), nil
	case KeyAgreement:
		return k.agreementPub[:], nil
	case CapabilityDelegation:
		return nil, ErrUnsupportedRelationship
	default:
		return nil, fmt.Errorf("unknown key relationship %d", rel)
	}
}

func ed25519FromSeed(role, seed string) (ed25519.PrivateKey, error) {
	raw, err := decodeSeed(role, seed)
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(raw), nil
}

func decodeSeed(role, seed string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(seed, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%s seed is not valid hex: %w", role, err)
	}
	if len(raw) != SeedSize {
		return nil, fmt.Errorf("%s seed must be %d bytes, got %d", role, SeedSize, len(raw))
	}
	return raw, nil
}
