// Package auth decodes the bearer credential issued by the backend.
//
// The credential is a JWT whose payload carries the role and the expiry. The
// dashboard never holds the signing secret, so it decodes the payload without
// verifying the signature and uses the claims for UI gating only. The backend
// re-authorizes every request; a forged payload gains nothing but a 401.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"openvote/dashboard/internal/rbac"
)

type Claims struct {
	Role     string `json:"role"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// Decode extracts the claims of token without checking its signature.
func Decode(token string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	if _, ok := rbac.Parse(claims.Role); !ok {
		return Claims{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}

// DecodeAt is Decode plus the expiry check against now.
func DecodeAt(token string, now time.Time) (Claims, error) {
	claims, err := Decode(token)
	if err != nil {
		return Claims{}, err
	}
	if !now.Before(claims.Expiry()) {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Fingerprint identifies a token in logs without revealing it.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:6])
}
