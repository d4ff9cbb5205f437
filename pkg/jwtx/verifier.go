package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a token and returns its claims.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// VerifyOptions are the claim expectations applied after the signature check.
type VerifyOptions struct {
	Issuer string        // empty skips the check
	Use    string        // UseAccess or UseRefresh, empty skips the check
	Leeway time.Duration // clock skew allowance for exp/nbf

	// Now is overridable for tests.
	Now func() time.Time
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrWrongUse     = errors.New("jwtx: token used for the wrong purpose")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

type verifier struct {
	alg    string
	keyFor jwt.Keyfunc
	opts   VerifyOptions
}

// NewEdDSAVerifier verifies EdDSA tokens against public keys in keys,
// selected by the kid header.
func NewEdDSAVerifier(keys *KeySet, opts VerifyOptions) Verifier {
	return &verifier{
		alg:  AlgorithmEdDSA,
		opts: opts,
		keyFor: func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, ErrUnknownKID
			}
			pub, err := keys.Get(kid)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
			}
			return pub, nil
		},
	}
}

// NewHS256Verifier verifies HS256 tokens against secret.
func NewHS256Verifier(secret []byte, opts VerifyOptions) Verifier {
	key := append([]byte(nil), secret...)
	return &verifier{
		alg:    AlgorithmHS256,
		opts:   opts,
		keyFor: func(*jwt.Token) (any, error) { return key, nil },
	}
}

func (v *verifier) Verify(raw string) (Claims, error) {
	// Time based claims are checked below with our own clock and leeway.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{v.alg}),
		jwt.WithoutClaimsValidation(),
	)

	var claims Claims
	if _, err := parser.ParseWithClaims(raw, &claims, v.keyFor); err != nil {
		return Claims{}, classify(err)
	}

	now := time.Now().UTC()
	if v.opts.Now != nil {
		now = v.opts.Now()
	}

	if claims.Subject == "" {
		return Claims{}, ErrInvalidClaim
	}
	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateUse(v.opts.Use); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(now, v.opts.Leeway); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrAlgMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
