package chain

import (
	"context"
)

// Client submits extrinsics and answers attestation state queries. Submit
// blocks until the ledger acknowledges the submission; a rejected extrinsic
// is an error, never a silent drop. QueryAttestation returns
// sentinel.ErrNotFound when no record exists under the claim hash.
type Client interface {
	Submit(ctx context.Context, ext Extrinsic) error
	QueryAttestation(ctx context.Context, claimHash string) (Attestation, error)
}
