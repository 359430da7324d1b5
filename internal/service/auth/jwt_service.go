package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type constants distinguish access tokens from refresh tokens so
// one can never be used in place of the other.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Common JWT validation errors.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrWrongTokenType      = errors.New("wrong token type")
	ErrInvalidSigningKey   = errors.New("signing key must be at least 32 bytes")
	ErrInvalidClaims       = errors.New("token claims are invalid")
	ErrUnexpectedAlgorithm = errors.New("unexpected signing algorithm")
)

// Claims defines the JWT claims carried by both token kinds. TokenType
// is validated on every parse so refresh tokens cannot authenticate API
// calls.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	TokenType string    `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTService defines the interface for JWT operations.
type JWTService interface {
	// GenerateToken creates a signed access token for the given user.
	GenerateToken(ctx context.Context, userID uuid.UUID, email string) (string, error)

	// GenerateRefreshToken creates a signed refresh token with a longer
	// lifetime than the access token.
	GenerateRefreshToken(ctx context.Context, userID uuid.UUID, email string) (string, error)

	// ValidateToken verifies an access token and returns its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)

	// ValidateRefreshToken verifies a refresh token and returns its claims.
	ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Config holds the settings for the HMAC JWT service.
type Config struct {
	Secret               string
	TokenLifetime        time.Duration
	RefreshTokenLifetime time.Duration
}

// hmacJWTService implements JWTService using HMAC-SHA256 signing.
type hmacJWTService struct {
	secret               []byte
	tokenLifetime        time.Duration
	refreshTokenLifetime time.Duration
	timeFunc             func() time.Time
}

// Allow for clock drift between token issuer and validator.
const clockSkewLeeway = 30 * time.Second

// NewJWTService creates a JWTService signing with HMAC-SHA256.
func NewJWTService(cfg Config) (JWTService, error) {
	if len(cfg.Secret) < 32 {
		return nil, ErrInvalidSigningKey
	}
	if cfg.TokenLifetime <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %v", cfg.TokenLifetime)
	}
	if cfg.RefreshTokenLifetime <= 0 {
		return nil, fmt.Errorf("refresh token lifetime must be positive, got %v", cfg.RefreshTokenLifetime)
	}

	return &hmacJWTService{
		secret:               []byte(cfg.Secret),
		tokenLifetime:        cfg.TokenLifetime,
		refreshTokenLifetime: cfg.RefreshTokenLifetime,
		timeFunc:             time.Now,
	}, nil
}

// GenerateToken implements JWTService.GenerateToken.
func (s *hmacJWTService) GenerateToken(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	return s.generate(userID, email, TokenTypeAccess, s.tokenLifetime)
}

// GenerateRefreshToken implements JWTService.GenerateRefreshToken.
func (s *hmacJWTService) GenerateRefreshToken(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	return s.generate(userID, email, TokenTypeRefresh, s.refreshTokenLifetime)
}

func (s *hmacJWTService) generate(userID uuid.UUID, email, tokenType string, lifetime time.Duration) (string, error) {
	now := s.timeFunc()
	claims := Claims{
		UserID:    userID,
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken implements JWTService.ValidateToken.
func (s *hmacJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	return s.validate(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken implements JWTService.ValidateRefreshToken.
func (s *hmacJWTService) ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error) {
	return s.validate(tokenString, TokenTypeRefresh)
}

func (s *hmacJWTService) validate(tokenString, expectedType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedAlgorithm, t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithLeeway(clockSkewLeeway), jwt.WithTimeFunc(s.timeFunc))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user ID", ErrInvalidClaims)
	}
	if claims.TokenType != expectedType {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrWrongTokenType, expectedType, claims.TokenType)
	}

	return claims, nil
}
