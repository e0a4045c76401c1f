package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateResponse is returned when a response already exists for
	// the same (session, slide, participant). This is the expected outcome
	// of an idempotent retry, not a failure.
	ErrDuplicateResponse = errors.New("duplicate response")

	// ErrSessionEnded is returned when a mutation targets a session that
	// has reached its terminal state.
	ErrSessionEnded = errors.New("session ended")
)
