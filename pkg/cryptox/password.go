package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrPasswordMismatch is returned when a candidate does not match the hash.
	ErrPasswordMismatch = errors.New("cryptox: password does not match")
	// ErrMalformedHash is returned for anything that is not a PHC argon2id string.
	ErrMalformedHash = errors.New("cryptox: malformed password hash")
)

// Params are the Argon2id cost parameters encoded into every hash.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
	SaltLength  int
}

// DefaultParams follow the OWASP minimum for argon2id (19 MiB, t=2, p=1).
var DefaultParams = Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	KeyLength:   32,
	SaltLength:  16,
}

// HashPassword derives a PHC encoded argon2id hash of the peppered password
// using DefaultParams.
func HashPassword(password string) (string, error) {
	return HashPasswordWith(password, DefaultParams)
}

// HashPasswordWith is HashPassword with explicit cost parameters.
func HashPasswordWith(password string, p Params) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password+Pepper()), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword recomputes the hash of password with the parameters and
// salt stored in encoded and compares in constant time. The work done is
// the same whether or not the password matches.
func VerifyPassword(password, encoded string) error {
	p, salt, want, err := decodeHash(encoded)
	if err != nil {
		return err
	}

	got := argon2.IDKey([]byte(password+Pepper()), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

func decodeHash(encoded string) (Params, []byte, []byte, error) {
	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", salt, key]
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Params{}, nil, nil, ErrMalformedHash
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return Params{}, nil, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, ErrMalformedHash
	}

	p.SaltLength = len(salt)
	p.KeyLength = uint32(len(key)) // #nosec G115 - decoded from a short base64 field
	return p, salt, key, nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// DummyHash returns a fixed valid hash that no real password maps to. Login
// verifies against it when the account does not exist so both failure paths
// pay for one argon2 evaluation.
func DummyHash() string {
	dummyOnce.Do(func() {
		secret, err := GenerateToken(TokenSize256)
		if err != nil {
			panic(err)
		}
		dummyHash, err = HashPassword(secret)
		if err != nil {
			panic(err)
		}
	})
	return dummyHash
}
