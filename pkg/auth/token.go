package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenRequired = errors.New("bearer token is required")
	ErrTokenExpired  = errors.New("bearer token has expired")
)

// TokenInfo is what the storefront can learn from a bearer token handed over
// by the external login flow.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
	IsJWT     bool
}

// Expired reports whether the token is past its expiry at now, allowing leeway.
func (t TokenInfo) Expired(now time.Time, leeway time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return now.After(t.ExpiresAt.Add(leeway))
}

// InspectToken reads the registered claims of a JWT without verifying its
// signature; the marketplace API remains the verifier. Tokens that do not
// parse as JWTs are accepted as opaque.
func InspectToken(token string, now time.Time, leeway time.Duration) (TokenInfo, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenInfo{}, ErrTokenRequired
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, nil
	}

	info := TokenInfo{Subject: claims.Subject, IsJWT: true}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	if info.Expired(now, leeway) {
		return info, ErrTokenExpired
	}
	return info, nil
}
