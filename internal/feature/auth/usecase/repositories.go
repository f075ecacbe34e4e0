package usecase

import (
	"context"
	"time"

	"snote_backend/internal/feature/auth/domain/entity"
)

// UserRepository abstracts the persistence layer for user entities.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type UserRepository interface {
	// Create persists a new user to the storage.
	// It returns ErrEmailAlreadyExists if a user with the same normalized email exists.
	// Uniqueness must be enforced by the storage itself so concurrent creates cannot both succeed.
	Create(ctx context.Context, user *entity.User) error

	// FindByEmail retrieves a user matching the specified email address.
	// It returns ErrUserNotFound if the user does not exist.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByID retrieves a user matching the specified ID.
	// It returns ErrUserNotFound if the user does not exist.
	FindByID(ctx context.Context, id string) (*entity.User, error)
}

// SessionRepository abstracts the persistence layer for session entities.
type SessionRepository interface {
	// Create persists a new session to the storage.
	// It returns ErrSessionConflict if the ID is already taken.
	Create(ctx context.Context, session *entity.Session) error

	// FindByID retrieves a session by its ID (token digest).
	// Expired sessions may still be returned; callers check expiry.
	FindByID(ctx context.Context, id string) (*entity.Session, error)

	// Delete removes a session by ID. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteAllByUserID removes every session of the given user.
	DeleteAllByUserID(ctx context.Context, userID string) error

	// DeleteExpired removes all sessions whose expiry is at or before now.
	// Returns the number of deleted sessions.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	// Hash returns a self-describing salted hash of password.
	Hash(ctx context.Context, password string) (string, error)

	// Verify reports whether password matches hash. A malformed hash yields false, nil.
	Verify(ctx context.Context, password, hash string) (bool, error)
}

// Metrics receives auth outcome events.
type Metrics interface {
	ObserveSignUp(result string)
	ObserveSignIn(result string)
	ObserveSessionsSwept(n int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveSignUp(string)       {}
func (noopMetrics) ObserveSignIn(string)       {}
func (noopMetrics) ObserveSessionsSwept(int64) {}
