package repository

import "errors"

// Common errors for repository operations.
var (
	// ErrUserNotFound is returned when no progress row exists for a user.
	ErrUserNotFound = errors.New("user progress not found")

	// ErrConflict is returned when a conditioned update found the row
	// changed since it was read. The whole read-modify-write must be
	// retried by the caller; the repository never retries internally.
	ErrConflict = errors.New("concurrent modification, retry the operation")

	// ErrDuplicateSession is returned when a focus session's reward has
	// already been claimed.
	ErrDuplicateSession = errors.New("session reward already claimed")
)
