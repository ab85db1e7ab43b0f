package service

import "errors"

var (
	// ErrValidation is a bad input shape, fixable by the caller before
	// the request is ever sent to the store.
	ErrValidation = errors.New("validation failed")

	// ErrRetryExhausted means the single conflict retry also failed.
	ErrRetryExhausted = errors.New("retry exhausted")

	// ErrOffline means the transport kept failing after bounded retries.
	ErrOffline = errors.New("store unreachable")

	// ErrUnknownPlan is returned for a plan code outside the configured
	// reference data.
	ErrUnknownPlan = errors.New("unknown membership plan")
)
