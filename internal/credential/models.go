// Package credential owns the credential record lifecycle: pending records
// created at payment time, attested and revoked records reflecting chain
// state, and the admin operations that drive the transitions.
package credential

import (
	"attester/internal/chain"
	"attester/internal/claim"
	id "attester/pkg/domain"
)

// Record is one stored credential. The attestation field is nil while the
// record is pending and always mirrors confirmed chain state afterwards.
//
// State machine: Pending → Attested → Revoked, with Pending → Deleted for
// rejection. A revoked attestation never returns to revoked=false.
type Record struct {
	ID          id.CredentialID    `json:"id"`
	Claim       claim.Credential   `json:"claim"`
	Attestation *chain.Attestation `json:"attestation,omitempty"`
}

// Pending reports whether the record still awaits an admin decision.
func (r *Record) Pending() bool {
	return r.Attestation == nil
}

// Revoked reports whether the record's attestation has been revoked.
func (r *Record) Revoked() bool {
	return r.Attestation != nil && r.Attestation.Revoked
}
