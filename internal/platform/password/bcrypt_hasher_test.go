package password

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *BcryptHasher {
	t.Helper()
	h, err := NewBcryptHasher(bcrypt.MinCost, 2)
	require.NoError(t, err)
	return h
}

func TestNewBcryptHasher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cost    int
		workers int
		wantErr bool
	}{
		{name: "min cost", cost: bcrypt.MinCost, workers: 1},
		{name: "production cost", cost: MinProductionCost, workers: 4},
		{name: "default workers", cost: bcrypt.MinCost, workers: 0},
		{name: "cost too low", cost: bcrypt.MinCost - 1, wantErr: true},
		{name: "cost too high", cost: bcrypt.MaxCost + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, err := NewBcryptHasher(tt.cost, tt.workers)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cost, h.Cost())
		})
	}
}

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "password123")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$2a$"), "hash should be self-describing bcrypt")
	assert.NotContains(t, hash, "password123")

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	ok, err := h.Verify(ctx, "password123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(ctx, "password124", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasher_FreshSalt(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	h1, err := h.Hash(context.Background(), "same-password")
	require.NoError(t, err)
	h2, err := h.Hash(context.Background(), "same-password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestBcryptHasher_VerifyMalformedHash(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	for _, hash := range []string{"", "not-a-hash", "$2a$04$short"} {
		ok, err := h.Verify(context.Background(), "password123", hash)
		assert.NoError(t, err, "hash %q", hash)
		assert.False(t, ok, "hash %q", hash)
	}
}

func TestBcryptHasher_TooLongPassword(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	_, err := h.Hash(context.Background(), strings.Repeat("a", MaxPasswordBytes+1))
	assert.Error(t, err)
}

func TestBcryptHasher_VerifyRejectsLongerPasswordWithSamePrefix(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)
	ctx := context.Background()

	password := strings.Repeat("p", MaxPasswordBytes)
	hash, err := h.Hash(ctx, password)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{name: "exact 72 bytes", password: password, want: true},
		{name: "same prefix plus suffix", password: password + "WRONG-SUFFIX", want: false},
		{name: "one extra byte", password: password + "p", want: false},
		{name: "71 bytes", password: password[:MaxPasswordBytes-1], want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify(ctx, tt.password, hash)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestBcryptHasher_ContextCanceled(t *testing.T) {
	t.Parallel()

	h, err := NewBcryptHasher(bcrypt.MinCost, 1)
	require.NoError(t, err)

	// Occupy the only worker.
	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.Hash(ctx, "password123")
	assert.ErrorIs(t, err, context.Canceled)

	ok, err := h.Verify(ctx, "password123", "$2a$04$whatever")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestBcryptHasher_Concurrent(t *testing.T) {
	t.Parallel()

	h := newTestHasher(t)

	hash, err := h.Hash(context.Background(), "password123")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := h.Verify(context.Background(), "password123", hash)
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	for _, ok := range results {
		assert.True(t, ok)
	}
}
