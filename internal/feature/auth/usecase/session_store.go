package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"snote_backend/internal/feature/auth/domain"
	"snote_backend/internal/feature/auth/domain/entity"
)

const (
	// DefaultSessionTTL is the lifetime of a freshly minted session.
	DefaultSessionTTL = 7 * 24 * time.Hour
	// DefaultStoreTimeout bounds every individual storage call.
	DefaultStoreTimeout = 3 * time.Second
	// DefaultSweepTimeout bounds one full sweep of expired sessions.
	DefaultSweepTimeout = time.Minute
)

// SessionStore owns the session lifecycle: absent -> active -> expired -> absent.
// Tokens are never renewed; each sign-in mints a new one.
type SessionStore struct {
	repo    SessionRepository
	ttl     time.Duration
	timeout time.Duration
	sweep   time.Duration
	now     func() time.Time
	random  io.Reader
}

// SessionStoreOption customizes a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithClock replaces the time source. Used by tests to step past the TTL.
func WithClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) { s.now = now }
}

// WithSessionStoreTimeout sets the per-call storage timeout.
func WithSessionStoreTimeout(d time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSweepTimeout sets the timeout for one SweepExpired call.
func WithSweepTimeout(d time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		if d > 0 {
			s.sweep = d
		}
	}
}

// WithRandomSource replaces crypto/rand as the token entropy source.
func WithRandomSource(r io.Reader) SessionStoreOption {
	return func(s *SessionStore) { s.random = r }
}

// NewSessionStore creates a SessionStore on top of repo.
// A non-positive ttl falls back to DefaultSessionTTL.
func NewSessionStore(repo SessionRepository, ttl time.Duration, opts ...SessionStoreOption) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &SessionStore{
		repo:    repo,
		ttl:     ttl,
		timeout: DefaultStoreTimeout,
		sweep:   DefaultSweepTimeout,
		now:     time.Now,
		random:  rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create mints a new token for userID and persists its session.
// The returned token is only valid once Create has returned without error.
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	token, digest, err := newSessionToken(s.random)
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now().UTC()
	session := &entity.Session{
		ID:        digest,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Create(ctx, session); err != nil {
		return "", fmt.Errorf("%w: create session: %w", domain.ErrStorageUnavailable, err)
	}
	return token, nil
}

// Lookup returns the user that owns token if, and only if, the session exists
// and has not expired. Every other outcome except a storage failure is
// ErrInvalidSession. Storage failures wrap domain.ErrStorageUnavailable.
func (s *SessionStore) Lookup(ctx context.Context, token string) (string, error) {
	if !wellFormedToken(token) {
		return "", ErrInvalidSession
	}
	digest := digestToken(token)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.repo.FindByID(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return "", ErrInvalidSession
		}
		return "", fmt.Errorf("%w: lookup session: %w", domain.ErrStorageUnavailable, err)
	}

	if session.IsExpiredAt(s.now()) {
		// Lazy cleanup; the sweep catches anything this misses.
		if err := s.repo.Delete(ctx, digest); err != nil {
			slog.Debug("failed to delete expired session", "session", shortDigest(digest), "error", err)
		}
		return "", ErrInvalidSession
	}
	return session.UserID, nil
}

// Delete removes the session identified by token. Unknown or malformed tokens are ignored.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if !wellFormedToken(token) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Delete(ctx, digestToken(token)); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("%w: delete session: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every session of userID.
func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.DeleteAllByUserID(ctx, userID); err != nil {
		return fmt.Errorf("%w: delete user sessions: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// SweepExpired removes sessions that have expired and returns how many were removed.
// A sweep walks the whole store, so it runs under its own timeout.
func (s *SessionStore) SweepExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.sweep)
	defer cancel()

	n, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: sweep sessions: %w", domain.ErrStorageUnavailable, err)
	}
	return n, nil
}

// shortDigest returns a log-safe prefix of a token digest.
func shortDigest(digest string) string {
	if len(digest) <= 8 {
		return digest
	}
	return digest[:8]
}
