package jwtx

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aussiebroadwan/streamtab/pkg/cryptox"
)

// KeyManager owns the signing keys for one token kind (access or refresh)
// and the verifier that accepts them.
type KeyManager struct {
	Verifier Verifier

	// KeySet is nil for symmetric managers, there is nothing to publish.
	KeySet *KeySet

	algorithm string
	use       string
	signers   []Signer
}

// KeyManagerOptions configures a KeyManager.
type KeyManagerOptions struct {
	// Algorithm is AlgorithmEdDSA or AlgorithmHS256.
	Algorithm string

	// Issuer is stamped on and required of every token.
	Issuer string

	// Use is UseAccess or UseRefresh.
	Use string

	// Secret is the HS256 key. Ignored for EdDSA.
	Secret []byte

	// NumKeys is how many Ed25519 keys to generate, 1..10, default 2.
	NumKeys int

	// Leeway for exp/nbf checks.
	Leeway time.Duration
}

// NewKeyManager builds a manager for opts.Algorithm. EdDSA keys are
// generated in memory and die with the process, so every outstanding
// token of that kind stops verifying on restart.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: issuer is required")
	}
	if opts.Use != UseAccess && opts.Use != UseRefresh {
		return nil, fmt.Errorf("jwtx: unknown token use %q", opts.Use)
	}

	vopts := VerifyOptions{Issuer: opts.Issuer, Use: opts.Use, Leeway: opts.Leeway}

	switch opts.Algorithm {
	case AlgorithmEdDSA:
		return newEdDSAManager(opts, vopts)
	case AlgorithmHS256:
		signer, err := NewHS256Signer(opts.Use, opts.Secret)
		if err != nil {
			return nil, err
		}
		return &KeyManager{
			Verifier:  NewHS256Verifier(opts.Secret, vopts),
			algorithm: AlgorithmHS256,
			use:       opts.Use,
			signers:   []Signer{signer},
		}, nil
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: EdDSA, HS256)", opts.Algorithm)
	}
}

func newEdDSAManager(opts KeyManagerOptions, vopts VerifyOptions) (*KeyManager, error) {
	n := min(max(opts.NumKeys, 1), 10)
	if opts.NumKeys == 0 {
		n = 2
	}

	keys := NewKeySet()
	signers := make([]Signer, 0, n)
	for i := range n {
		priv, err := cryptox.GenerateEd25519()
		if err != nil {
			return nil, err
		}
		kid, err := newKeyID(opts.Use)
		if err != nil {
			return nil, err
		}
		s, err := NewEdDSASigner(kid, priv)
		if err != nil {
			return nil, fmt.Errorf("jwtx: signer %d: %w", i+1, err)
		}
		if err := keys.AddSigner(s); err != nil {
			return nil, fmt.Errorf("jwtx: signer %d: %w", i+1, err)
		}
		signers = append(signers, s)
	}

	return &KeyManager{
		Verifier:  NewEdDSAVerifier(keys, vopts),
		KeySet:    keys,
		algorithm: AlgorithmEdDSA,
		use:       opts.Use,
		signers:   signers,
	}, nil
}

func (km *KeyManager) Algorithm() string { return km.algorithm }
func (km *KeyManager) Use() string       { return km.use }

// IsReady reports whether the manager can sign.
func (km *KeyManager) IsReady() bool {
	if km == nil || len(km.signers) == 0 {
		return false
	}
	return km.KeySet == nil || km.KeySet.IsReady()
}

// Signer picks one of the signing keys at random.
func (km *KeyManager) Signer() Signer {
	if len(km.signers) == 1 {
		return km.signers[0]
	}
	return km.signers[rand.IntN(len(km.signers))]
}

// Sign signs claims with a random key after checking they are meant for
// this manager.
func (km *KeyManager) Sign(c Claims) (string, error) {
	if c.Use != km.use {
		return "", ErrWrongUse
	}
	return km.Signer().Sign(c)
}

func newKeyID(use string) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("jwtx: key id: %w", err)
	}
	return use + "-" + token, nil
}
