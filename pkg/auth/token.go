package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when an access token cannot be decoded
var ErrMalformedToken = errors.New("malformed access token")

// Claims holds the access token fields the dashboard reads locally
type Claims struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ParseUnverified decodes the claims of an access token without checking its
// signature. The result is only good for expiry checks; the backend verifies
// every token it receives.
func ParseUnverified(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMalformedToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// ExpiredAt reports whether the token is expired at now.
// Tokens without an exp claim never expire locally.
func (c *Claims) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(c.ExpiresAt.Time)
}

// TokenExpired decodes token and reports whether it is expired at now
func TokenExpired(token string, now time.Time) (bool, error) {
	claims, err := ParseUnverified(token)
	if err != nil {
		return false, err
	}
	return claims.ExpiredAt(now), nil
}
