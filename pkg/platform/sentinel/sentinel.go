package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, object storage and lock
// backends return these (optionally wrapped) so services can translate them
// into domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrExpired: signed URL or lease has expired
//   - ErrInvalidState: entity in wrong state for requested operation
//   - ErrLocked: an advisory lock is held by someone else
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrLocked       = errors.New("locked")
	ErrUnavailable  = errors.New("unavailable")
)
