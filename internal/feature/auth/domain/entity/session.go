package entity

import "time"

// Session represents a user's authentication session.
// The opaque token itself is only ever held by the client; storage keys the
// session by the token's SHA-256 digest.
type Session struct {
	ID        string    // SHA-256 hex digest of the session token (64 characters)
	UserID    string    // Associated user ID
	CreatedAt time.Time // Session creation time
	ExpiresAt time.Time // Absolute expiration time
}

// IsExpiredAt reports whether the session is no longer valid at t.
// A session is active only while t is strictly before ExpiresAt.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// IsExpired returns true if the session has passed its expiration time.
func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}
