package repository

import "errors"

var (
	// ErrInsufficientCredit means the delta would drive the remaining
	// balance below zero. The store rejects, it never clamps.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrConflict is a transient concurrent-write failure. Callers may
	// retry once; the idempotency key makes the retry safe.
	ErrConflict = errors.New("concurrent write conflict")

	// ErrNotFound means the referenced membership or record is missing.
	// Referential integrity problem, not retryable.
	ErrNotFound = errors.New("not found")

	// ErrNoActiveMembership means the player has no active membership to
	// charge against.
	ErrNoActiveMembership = errors.New("no active membership")
)
