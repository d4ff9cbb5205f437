package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 10 * 24 * time.Hour
)

// Token use values. Access and refresh tokens are signed by different keys
// but also carry their purpose so a key mix-up cannot promote one to the other.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Claims are the claims carried by both token kinds. Refresh tokens only
// populate the registered claims and Use.
type Claims struct {
	jwt.RegisteredClaims

	Use string `json:"use"`

	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// Profile is the optional identity payload embedded in access tokens.
type Profile struct {
	Username string
	Email    string
	FullName string
}

// NewAccessClaims builds claims for a short lived access token.
func NewAccessClaims(subject, issuer string, p Profile, ttl time.Duration, now time.Time) Claims {
	c := newClaims(UseAccess, subject, issuer, ttl, now)
	c.Username = p.Username
	c.Email = p.Email
	c.FullName = p.FullName
	return c
}

// NewRefreshClaims builds claims for a long lived refresh token.
func NewRefreshClaims(subject, issuer string, ttl time.Duration, now time.Time) Claims {
	return newClaims(UseRefresh, subject, issuer, ttl, now)
}

func newClaims(use, subject, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// Two tokens minted for the same subject in the same second
			// must still differ, rotation depends on it.
			ID: NewJTI(),
		},
		Use: use,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks iss when expected is set.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateUse checks the token purpose when expected is set.
func (c *Claims) ValidateUse(expected string) error {
	if expected != "" && c.Use != expected {
		return ErrWrongUse
	}
	return nil
}

// ValidateExpiry checks exp and nbf against now with leeway for clock skew.
func (c *Claims) ValidateExpiry(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
