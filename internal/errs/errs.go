package errs

import "errors"

// Sentinel errors shared across the client; branch with errors.Is.
var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrParticipationNotFound = errors.New("participation record not found")
	ErrInvalidTransition     = errors.New("invalid session status transition")
	ErrConnectionConsumed    = errors.New("connection is terminal and cannot be reused")
	ErrStoreNotReady         = errors.New("session store not hydrated")
	ErrLoginAbandoned        = errors.New("login flow abandoned by user")
	ErrNotAuthenticated      = errors.New("not authenticated")
)
