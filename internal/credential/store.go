package credential

import (
	"context"

	"attester/internal/chain"
	id "attester/pkg/domain"
)

// Store persists credential records. Implementations return
// sentinel.ErrNotFound for unknown ids and sentinel.ErrInvalidState when a
// write would clear a recorded revocation; services translate both into coded
// errors.
type Store interface {
	// Add stores a new pending record under a freshly generated id.
	Add(ctx context.Context, record *Record) error

	FindByID(ctx context.Context, credentialID id.CredentialID) (*Record, error)

	// List returns all records. Order is not significant.
	List(ctx context.Context) ([]*Record, error)

	// Delete permanently removes a record (admin rejection).
	Delete(ctx context.Context, credentialID id.CredentialID) error

	// SetAttestation replaces the record's attestation with confirmed chain
	// state. This is the only write path for the attestation field, and it
	// refuses to take a record from revoked=true back to revoked=false.
	SetAttestation(ctx context.Context, credentialID id.CredentialID, attestation chain.Attestation) (*Record, error)
}
