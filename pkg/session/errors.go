package session

import "errors"

var (
	// ErrNotFound indicates no record exists for the identifier. Expired and
	// absent are indistinguishable: callers silently re-provision.
	ErrNotFound = errors.New("session.not_found")

	// ErrStoreUnavailable indicates the backing store could not be reached.
	// Callers must degrade to anonymous, never to assume-authenticated, and
	// mutating requests must fail rather than proceed with unsaved state.
	ErrStoreUnavailable = errors.New("session.store_unavailable")

	// ErrIDGeneration indicates identifier generation failed.
	ErrIDGeneration = errors.New("session.id_generation_failed")

	// ErrNoTransport indicates no transport is configured.
	ErrNoTransport = errors.New("session.no_transport")
)
