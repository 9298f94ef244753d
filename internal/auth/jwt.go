// Package auth issues and verifies the bearer tokens used by the API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/erazemk/evidenca/internal/model"
)

// ErrInvalidToken is returned for tokens that fail parsing or verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the JWT claims.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// DefaultTTL is the token lifetime used when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

// Issuer signs tokens with a shared HMAC secret.
type Issuer struct {
	Secret string
	TTL    time.Duration
}

// Issue creates a token for a user with a unique JTI.
func (i Issuer) Issue(u model.User) (string, error) {
	ttl := i.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()

	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.Secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (i Issuer) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(i.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
