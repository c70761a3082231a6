package claim

import (
	"attester/internal/ctype"
	dErrors "attester/pkg/domain-errors"
)

// Credential is the shape a wallet submits for attestation: a claim plus the
// root hash the wallet computed over it. Legitimations carry credentials that
// back the claim; the attester accepts them but does not require any.
type Credential struct {
	Claim         Claim        `json:"claim"`
	RootHash      string       `json:"rootHash"`
	Legitimations []Credential `json:"legitimations"`
}

// VerifyWellFormed checks the credential's structure against the referenced
// claim type: schema conformance and root hash integrity. A root hash that
// does not match the claim means the wallet (or a middlebox) altered one of
// them.
func (c Credential) VerifyWellFormed(ct ctype.CType) error {
	if err := c.Claim.Verify(ct); err != nil {
		return err
	}
	if c.RootHash != c.Claim.RootHash() {
		return dErrors.New(dErrors.CodeInvalidInput, "credential root hash does not match claim")
	}
	return nil
}
