package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndVerify(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash(context.Background(), "Password1")
	require.NoError(t, err)
	assert.NotEqual(t, "Password1", hash)

	assert.NoError(t, hasher.Verify(context.Background(), "Password1", hash))
}

func TestBcryptVerifyMismatch(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash(context.Background(), "Password1")
	require.NoError(t, err)

	err = hasher.Verify(context.Background(), "WrongPassword1", hash)
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestBcryptVerifyMalformedHash(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	err := hasher.Verify(context.Background(), "Password1", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPasswordMismatch)
}

func TestBcryptCostClamped(t *testing.T) {
	// Out-of-range costs fall back to the default instead of failing at
	// hash time.
	for _, cost := range []int{-1, 0, bcrypt.MaxCost + 1} {
		hasher := NewBcryptHasher(cost)
		hash, err := hasher.Hash(context.Background(), "Password1")
		require.NoError(t, err)

		parsed, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.DefaultCost, parsed)
	}
}

func TestBcryptHashesAreSalted(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	first, err := hasher.Hash(context.Background(), "Password1")
	require.NoError(t, err)
	second, err := hasher.Hash(context.Background(), "Password1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
