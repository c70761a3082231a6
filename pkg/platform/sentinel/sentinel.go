package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and chain adapters return
// these (optionally wrapped) so services can translate them into coded domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store or on chain
// - ErrConflict: record already exists (duplicate attestation add)
// - ErrExpired: session or quote validity window has passed
// - ErrInvalidState: record in wrong state for the requested transition
// - ErrUnavailable: backing service temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
