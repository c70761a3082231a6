// Package domain holds shared domain primitives: typed identifiers and the DID
// value type. Constructing them through the Parse functions at trust boundaries
// enforces validity; direct casting bypasses validation.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

// CredentialID identifies a credential record in the store.
type CredentialID uuid.UUID

// NewCredentialID returns a freshly generated credential id.
func NewCredentialID() CredentialID {
	return CredentialID(uuid.New())
}

// ParseCredentialID validates external input as a credential id.
func ParseCredentialID(s string) (CredentialID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CredentialID{}, err
	}
	return CredentialID(u), nil
}

func (id CredentialID) String() string {
	return uuid.UUID(id).String()
}

func (id CredentialID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText serializes the id in canonical UUID form. Defined types do not
// inherit the underlying uuid methods, so JSON needs these explicitly.
func (id CredentialID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *CredentialID) UnmarshalText(text []byte) error {
	parsed, err := ParseCredentialID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SessionID identifies a claim-flow session.
type SessionID uuid.UUID

// NewSessionID returns a freshly generated, unguessable session id.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID validates external input as a session id.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

func (id SessionID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *SessionID) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// DID is a decentralized identifier string, e.g. "did:attester:4q7…".
type DID string

func (d DID) String() string {
	return string(d)
}

func (d DID) IsNil() bool {
	return d == ""
}

// Valid reports whether the value has the minimal did:<method>:<id> shape.
func (d DID) Valid() bool {
	parts := strings.SplitN(string(d), ":", 3)
	return len(parts) == 3 && parts[0] == "did" && parts[1] != "" && parts[2] != ""
}
