package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACSecretSize is the shortest HS256 secret accepted, in bytes.
const MinHMACSecretSize = 32

var ErrWeakSecret = errors.New("jwtx: hmac secret shorter than 32 bytes")

// HS256Signer signs with a shared secret. The same value verifies, so it is
// never published.
type HS256Signer struct {
	kid    string
	secret []byte
}

// NewHS256Signer copies secret and wraps it under kid.
func NewHS256Signer(kid string, secret []byte) (*HS256Signer, error) {
	if len(secret) < MinHMACSecretSize {
		return nil, ErrWeakSecret
	}
	return &HS256Signer{kid: kid, secret: append([]byte(nil), secret...)}, nil
}

func (s *HS256Signer) Alg() string { return AlgorithmHS256 }
func (s *HS256Signer) KID() string { return s.kid }

func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.secret)
}
