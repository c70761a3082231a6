package chain

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"
	"sync"

	"github.com/mr-tron/base58"

	id "attester/pkg/domain"
	"attester/pkg/platform/sentinel"
)

// InMemoryLedger is the in-process ledger. It enforces the same rules a real
// attestation chain would: both signatures must verify, the signing DID must
// be a registered attester, double-adds are rejected, and revocation is a
// one-way transition.
type InMemoryLedger struct {
	mu           sync.RWMutex
	attestations map[string]Attestation

	attesters map[id.DID]struct{}
	payers    map[string]ed25519.PublicKey
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		attestations: make(map[string]Attestation),
		attesters:    make(map[id.DID]struct{}),
		payers:       make(map[string]ed25519.PublicKey),
	}
}

// RegisterAttester authorizes a DID to author attestations.
func (l *InMemoryLedger) RegisterAttester(did id.DID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attesters[did] = struct{}{}
}

// RegisterPayer funds a fee account.
func (l *InMemoryLedger) RegisterPayer(address string, pub ed25519.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payers[address] = pub
}

func (l *InMemoryLedger) Submit(ctx context.Context, ext Extrinsic) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	signerDID, err := l.verify(ext)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case ext.Call.Module == ModuleAttestation && ext.Call.Method == MethodAdd:
		return l.applyAdd(ext.Call, signerDID)
	case ext.Call.Module == ModuleAttestation && ext.Call.Method == MethodRevoke:
		return l.applyRevoke(ext.Call, signerDID)
	default:
		return fmt.Errorf("unknown call %s.%s", ext.Call.Module, ext.Call.Method)
	}
}

func (l *InMemoryLedger) QueryAttestation(ctx context.Context, claimHash string) (Attestation, error) {
	if err := ctx.Err(); err != nil {
		return Attestation{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	attestation, ok := l.attestations[claimHash]
	if !ok {
		return Attestation{}, sentinel.ErrNotFound
	}
	return attestation, nil
}

// verify checks both authorization signatures and returns the signing DID.
func (l *InMemoryLedger) verify(ext Extrinsic) (id.DID, error) {
	payload := SigningPayload(ext.Call, ext.Payer)

	l.mu.RLock()
	payerPub, payerKnown := l.payers[ext.Payer]
	l.mu.RUnlock()

	if !payerKnown {
		return "", fmt.Errorf("unknown payer account %s", ext.Payer)
	}
	if !ed25519.Verify(payerPub, payload, ext.PayerSignature) {
		return "", fmt.Errorf("payer signature verification failed")
	}

	didPub, signerDID, err := keyFromURI(ext.DIDSignature.KeyURI)
	if err != nil {
		return "", err
	}

	l.mu.RLock()
	_, authorized := l.attesters[signerDID]
	l.mu.RUnlock()

	if !authorized {
		return "", fmt.Errorf("DID %s is not a registered attester", signerDID)
	}
	if !ed25519.Verify(didPub, payload, ext.DIDSignature.Signature) {
		return "", fmt.Errorf("DID signature verification failed")
	}

	return signerDID, nil
}

func (l *InMemoryLedger) applyAdd(call Call, signer id.DID) error {
	if len(call.Args) != 2 {
		return fmt.Errorf("attestation.add expects 2 args, got %d", len(call.Args))
	}
	claimHash, cTypeHash := call.Args[0], call.Args[1]

	if _, exists := l.attestations[claimHash]; exists {
		return fmt.Errorf("%w: claim %s already attested", sentinel.ErrConflict, claimHash)
	}

	l.attestations[claimHash] = Attestation{
		ClaimHash: claimHash,
		CTypeHash: cTypeHash,
		Owner:     signer,
		Revoked:   false,
	}
	return nil
}

func (l *InMemoryLedger) applyRevoke(call Call, signer id.DID) error {
	if len(call.Args) != 1 {
		return fmt.Errorf("attestation.revoke expects 1 arg, got %d", len(call.Args))
	}
	claimHash := call.Args[0]

	attestation, exists := l.attestations[claimHash]
	if !exists {
		return fmt.Errorf("%w: no attestation under %s", sentinel.ErrNotFound, claimHash)
	}
	if attestation.Owner != signer {
		return fmt.Errorf("DID %s does not own attestation %s", signer, claimHash)
	}
	if attestation.Revoked {
		return fmt.Errorf("%w: attestation %s already revoked", sentinel.ErrInvalidState, claimHash)
	}

	attestation.Revoked = true
	l.attestations[claimHash] = attestation
	return nil
}

// keyFromURI recovers the verification key and DID from a self-certifying key
// URI of the form did:…#z<base58-key>.
func keyFromURI(uri string) (ed25519.PublicKey, id.DID, error) {
	didPart, frag, found := strings.Cut(uri, "#")
	if !found || !strings.HasPrefix(frag, "z") {
		return nil, "", fmt.Errorf("key URI %q has no key fragment", uri)
	}
	raw, err := base58.Decode(strings.TrimPrefix(frag, "z"))
	if err != nil {
		return nil, "", fmt.Errorf("decode key fragment: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, "", fmt.Errorf("verification key must be %d bytes", ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), id.DID(didPart), nil
}
