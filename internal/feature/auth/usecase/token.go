package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

const (
	// sessionTokenBytes is the amount of randomness in a session token (256 bits).
	sessionTokenBytes = 32
	// sessionTokenLength is the length of the hex-rendered token.
	sessionTokenLength = sessionTokenBytes * 2
)

// newSessionToken reads random bytes from r and returns the hex token handed to
// the client together with the digest used as the storage key.
func newSessionToken(r io.Reader) (token, digest string, err error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	token = hex.EncodeToString(b)
	return token, digestToken(token), nil
}

// digestToken returns the SHA-256 hex digest of a token.
func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// wellFormedToken reports whether token has the shape of an issued token.
// It lets obviously bogus tokens be rejected without a storage round trip.
func wellFormedToken(token string) bool {
	if len(token) != sessionTokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
