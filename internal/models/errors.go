package models

import "errors"

var (
	// ErrValidation reports missing or malformed input, caught before any
	// store access.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is deliberately non-specific: callers cannot tell
	// an unknown login ID from a wrong PIN.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken reports a direct-access token that matches no driver.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrNotOwned reports a project that does not exist for the acting driver.
	// Indistinguishable from not-found: callers cannot learn whether the
	// project exists for a different driver.
	ErrNotOwned = errors.New("project not found")

	// ErrTransitionRejected reports an atomic update that matched no row:
	// stale ownership, an illegal state for the requested transition, or an
	// already-applied transition.
	ErrTransitionRejected = errors.New("status transition rejected")

	// ErrTransientFetch reports a retryable backend failure.
	ErrTransientFetch = errors.New("transient fetch failure")

	// ErrPersistentFetch reports a fetch whose retries are exhausted.
	ErrPersistentFetch = errors.New("fetch failed after retries")
)
