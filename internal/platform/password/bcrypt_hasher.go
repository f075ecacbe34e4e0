// Package password provides the bcrypt password hasher.
package password

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MinProductionCost is the lowest bcrypt cost accepted by the server config.
const MinProductionCost = 10

// MaxPasswordBytes is the longest input bcrypt reads. Longer input is
// rejected by Hash and never matches in Verify.
const MaxPasswordBytes = 72

// BcryptHasher hashes and verifies passwords with bcrypt.
// Hash and Verify share a bounded pool of workers so bursts of sign-ins
// cannot occupy every CPU.
type BcryptHasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewBcryptHasher returns a hasher using the given cost.
// workers <= 0 uses GOMAXPROCS.
func NewBcryptHasher(cost, workers int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &BcryptHasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(workers)),
	}, nil
}

// Cost returns the configured bcrypt cost.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash returns a salted, self-describing bcrypt hash of password.
func (h *BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("hash worker unavailable: %w", err)
	}
	defer h.sem.Release(1)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches hash.
// A malformed hash or a password longer than MaxPasswordBytes is a
// mismatch, not an error. The comparison still runs for over-long input.
func (h *BcryptHasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("hash worker unavailable: %w", err)
	}
	defer h.sem.Release(1)

	tooLong := len(password) > MaxPasswordBytes
	if tooLong {
		password = password[:MaxPasswordBytes]
	}
	// 第1引数はハッシュ化パスワード、第2引数は平文パスワード
	matched := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	return matched && !tooLong, nil
}
