// Package store is the task store client: it issues CRUD requests
// against the remote task service and converts every failure into one
// of the typed errors below. It never touches the local snapshot;
// reconciling results into client state is the sync engine's job.
package store

import "errors"

var (
	// ErrUnauthenticated - no active session, the operation was not attempted.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrValidationRejected - the payload was rejected locally or by the store.
	ErrValidationRejected = errors.New("validation rejected")
	// ErrNotFound - the target id no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized - the caller does not own the record.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStoreUnavailable - transport or backend failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUnknown - unclassified failure caught at the boundary.
	ErrUnknown = errors.New("unknown error")
)
