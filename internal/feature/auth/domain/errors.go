// Package domain defines domain-level errors for the auth feature.
package domain

import "errors"

// Domain errors for authentication operations.
// Every failure that crosses the usecase boundary is one of these; handlers
// map them to status codes and never expose the wrapped detail.
var (
	// ErrValidation indicates malformed input such as a short password.
	// The caller may fix the input and resubmit.
	ErrValidation = errors.New("invalid input")

	// ErrDuplicateEmail indicates that a user with the given email already exists.
	// This is returned during signup and is never retried automatically.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials indicates that the email is unknown or the password is wrong.
	// The two causes are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnauthenticated indicates a missing, malformed, unknown, revoked or expired session token.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrStorageUnavailable indicates that a backing store failed or timed out.
	// Requests that hit it fail closed.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
