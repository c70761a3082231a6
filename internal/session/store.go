package session

import (
	"context"

	id "attester/pkg/domain"
)

// Store persists sessions. Implementations return sentinel.ErrNotFound for
// unknown or expired ids; classification into domain errors happens in the
// service.
type Store interface {
	Save(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error

	// Execute runs a read-modify-write atomically for one session id so
	// concurrent mutations of the same session cannot interleave. The mutate
	// callback sees the current state and edits it in place; returning an
	// error aborts without persisting.
	Execute(ctx context.Context, sessionID id.SessionID, mutate func(*Session) error) (*Session, error)
}
