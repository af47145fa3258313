package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and outbound adapters
// return these (optionally wrapped) so services can translate them into
// domain errors with the right code.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: optimistic version check failed, caller may retry
// - ErrExpired: session or token has passed its expiry
// - ErrAlreadyUsed: single-use token already consumed
// - ErrInvalidState: record in wrong state for the requested transition
// - ErrUnavailable: downstream service temporarily unreachable
//
// For input validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
