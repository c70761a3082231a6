// Package audit captures the admin-relevant events of the credential
// lifecycle. Emission is decoupled from delivery: services emit into a
// buffered publisher, a worker drains events to the configured sink.
package audit

import "time"

// Action identifies what happened.
type Action string

const (
	ActionCredentialSubmitted Action = "credential.submitted"
	ActionCredentialAttested  Action = "credential.attested"
	ActionCredentialRevoked   Action = "credential.revoked"
	ActionCredentialRejected  Action = "credential.rejected"
	ActionTermsRejected       Action = "terms.rejected"
)

// Event is one audit record. Keep it transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	Action       Action    `json:"action"`
	CredentialID string    `json:"credentialId,omitempty"`
	ClaimHash    string    `json:"claimHash,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}
