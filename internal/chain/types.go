// Package chain models the attestation ledger: extrinsic construction and
// signing, a submission client, and attestation chain state. Consensus is out
// of scope; the in-process ledger verifies authorization the way a real node
// would and finalizes synchronously.
package chain

import (
	"encoding/json"
	"fmt"

	id "attester/pkg/domain"
)

// Call names one ledger operation with its arguments.
type Call struct {
	Module string   `json:"module"`
	Method string   `json:"method"`
	Args   []string `json:"args"`
}

// Attestation module calls.
const (
	ModuleAttestation = "attestation"
	MethodAdd         = "add"
	MethodRevoke      = "revoke"
)

// AddAttestationCall registers an attestation for a claim hash.
func AddAttestationCall(claimHash, cTypeHash string) Call {
	return Call{Module: ModuleAttestation, Method: MethodAdd, Args: []string{claimHash, cTypeHash}}
}

// RevokeAttestationCall revokes the attestation under a claim hash.
func RevokeAttestationCall(claimHash string) Call {
	return Call{Module: ModuleAttestation, Method: MethodRevoke, Args: []string{claimHash}}
}

// Signature is a detached ledger signature plus the key URI that made it.
type Signature struct {
	Signature []byte `json:"signature"`
	KeyURI    string `json:"keyUri"`
}

// Extrinsic is a DID-authorized, fee-paid ledger transaction. The DID
// signature authorizes the call under the attester's identity; the payer
// signature covers the fee account.
type Extrinsic struct {
	Call           Call      `json:"call"`
	Payer          string    `json:"payer"`
	DIDSignature   Signature `json:"didSignature"`
	PayerSignature []byte    `json:"payerSignature"`
}

// SigningPayload is the canonical byte encoding both signatures cover.
func SigningPayload(call Call, payer string) []byte {
	payload, err := json.Marshal(struct {
		Call  Call   `json:"call"`
		Payer string `json:"payer"`
	}{Call: call, Payer: payer})
	if err != nil {
		panic(fmt.Sprintf("marshal extrinsic payload: %v", err))
	}
	return payload
}

// Attestation is the on-ledger record binding a claim hash to an attester
// DID. It reflects confirmed chain state only; nothing in this package
// fabricates one locally.
type Attestation struct {
	ClaimHash string `json:"claimHash"`
	CTypeHash string `json:"cTypeHash"`
	Owner     id.DID `json:"owner"`
	Revoked   bool   `json:"revoked"`
}
