// Package usecase implements the business logic for the auth feature.
package usecase

import "errors"

// Store-level errors returned by repository implementations.
// The usecase translates them into the domain taxonomy before they leave this package.
var (
	// ErrUserNotFound is returned when a user cannot be found by email or ID.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailAlreadyExists is returned when attempting to create a user with an email that already exists.
	ErrEmailAlreadyExists = errors.New("email already exists")

	// ErrSessionNotFound is returned when a session cannot be found by ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionConflict is returned when a session with the same ID is already stored.
	ErrSessionConflict = errors.New("session already exists")

	// ErrInvalidSession is returned by SessionStore.Lookup for any token that does not
	// map to an active session. Malformed, unknown, deleted and expired tokens all
	// produce this same value.
	ErrInvalidSession = errors.New("invalid session")
)
