// Package session owns the claim-flow session: the challenge handshake that
// binds a wallet's DID and encryption key to a session id, and the staging
// slot for the credential awaiting payment.
package session

import (
	"time"

	"attester/internal/claim"
	"attester/internal/keys"
	id "attester/pkg/domain"
)

// Session is the per-wallet state threaded through the multi-step claim flow.
// The staged credential is transient: ownership moves to the credential store
// at payment time and the slot is cleared.
type Session struct {
	ID               id.SessionID      `json:"id"`
	DID              id.DID            `json:"did"`
	EncryptionKeyURI keys.KeyURI       `json:"encryptionKeyUri"`
	Challenge        string            `json:"challenge"`
	Confirmed        bool              `json:"confirmed"`
	Credential       *claim.Credential `json:"credential,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	ExpiresAt        time.Time         `json:"expiresAt"`
}

// Expired reports whether the session's lifetime has passed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
