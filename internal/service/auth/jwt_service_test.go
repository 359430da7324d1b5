package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestJWTService(t *testing.T) *hmacJWTService {
	t.Helper()

	svc, err := NewJWTService(Config{
		Secret:               testSecret,
		TokenLifetime:        15 * time.Minute,
		RefreshTokenLifetime: 24 * time.Hour,
	})
	require.NoError(t, err)
	return svc.(*hmacJWTService)
}

func TestNewJWTServiceRejectsShortSecret(t *testing.T) {
	_, err := NewJWTService(Config{
		Secret:               "too-short",
		TokenLifetime:        time.Minute,
		RefreshTokenLifetime: time.Hour,
	})
	assert.ErrorIs(t, err, ErrInvalidSigningKey)
}

func TestNewJWTServiceRejectsNonPositiveLifetimes(t *testing.T) {
	_, err := NewJWTService(Config{Secret: testSecret, TokenLifetime: 0, RefreshTokenLifetime: time.Hour})
	assert.Error(t, err)

	_, err = NewJWTService(Config{Secret: testSecret, TokenLifetime: time.Minute, RefreshTokenLifetime: -1})
	assert.Error(t, err)
}

func TestJWTRoundTrip(t *testing.T) {
	svc := newTestJWTService(t)
	userID := uuid.New()

	token, err := svc.GenerateToken(context.Background(), userID, "user@example.com")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestJWTRefreshRoundTrip(t *testing.T) {
	svc := newTestJWTService(t)
	userID := uuid.New()

	token, err := svc.GenerateRefreshToken(context.Background(), userID, "user@example.com")
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)
}

func TestJWTRejectsWrongTokenType(t *testing.T) {
	svc := newTestJWTService(t)
	userID := uuid.New()

	refresh, err := svc.GenerateRefreshToken(context.Background(), userID, "user@example.com")
	require.NoError(t, err)
	access, err := svc.GenerateToken(context.Background(), userID, "user@example.com")
	require.NoError(t, err)

	// A refresh token must not authenticate API calls, and vice versa.
	_, err = svc.ValidateToken(context.Background(), refresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, err = svc.ValidateRefreshToken(context.Background(), access)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestJWTExpiredToken(t *testing.T) {
	svc := newTestJWTService(t)

	issued := time.Now().Add(-time.Hour)
	svc.timeFunc = func() time.Time { return issued }
	token, err := svc.GenerateToken(context.Background(), uuid.New(), "user@example.com")
	require.NoError(t, err)

	svc.timeFunc = time.Now
	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTClockSkewLeeway(t *testing.T) {
	svc := newTestJWTService(t)

	// Expired 10 seconds ago, inside the 30 second leeway.
	issued := time.Now().Add(-15*time.Minute - 10*time.Second)
	svc.timeFunc = func() time.Time { return issued }
	token, err := svc.GenerateToken(context.Background(), uuid.New(), "user@example.com")
	require.NoError(t, err)

	svc.timeFunc = time.Now
	_, err = svc.ValidateToken(context.Background(), token)
	assert.NoError(t, err)
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	svc := newTestJWTService(t)

	token, err := svc.GenerateToken(context.Background(), uuid.New(), "user@example.com")
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = svc.ValidateToken(context.Background(), tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsTokenFromOtherSecret(t *testing.T) {
	svc := newTestJWTService(t)

	other, err := NewJWTService(Config{
		Secret:               "ffffffffffffffffffffffffffffffff",
		TokenLifetime:        time.Minute,
		RefreshTokenLifetime: time.Hour,
	})
	require.NoError(t, err)

	token, err := other.GenerateToken(context.Background(), uuid.New(), "user@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsGarbage(t *testing.T) {
	svc := newTestJWTService(t)

	_, err := svc.ValidateToken(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
