package jwtx_test

import (
	"testing"

	"github.com/aussiebroadwan/streamtab/pkg/cryptox"
	"github.com/aussiebroadwan/streamtab/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestKeySet_AddAndGet(t *testing.T) {
	priv, err := cryptox.GenerateEd25519()
	require.NoError(t, err)
	s, err := jwtx.NewEdDSASigner("kid-1", priv)
	require.NoError(t, err)

	ks := jwtx.NewKeySet()
	require.False(t, ks.IsReady())
	require.NoError(t, ks.AddSigner(s))
	require.True(t, ks.IsReady())

	pub, err := ks.Get("kid-1")
	require.NoError(t, err)
	require.True(t, pub.Equal(priv.Public()))

	_, err = ks.Get("missing")
	require.ErrorIs(t, err, jwtx.ErrNoKey)

	// Re-adding the same kid replaces rather than duplicates
	require.NoError(t, ks.AddSigner(s))
	require.Len(t, ks.PublicJWKS().Keys, 1)
}

func TestKeySet_RejectsBadJWK(t *testing.T) {
	ks := jwtx.NewKeySet()

	tests := []struct {
		name string
		jwk  jwtx.JWK
	}{
		{"rsa", jwtx.JWK{Kty: "RSA", Kid: "a"}},
		{"no kid", jwtx.JWK{Kty: "OKP", Crv: "Ed25519", X: "AAAA"}},
		{"bad base64", jwtx.JWK{Kty: "OKP", Crv: "Ed25519", Kid: "a", X: "!!"}},
		{"short key", jwtx.JWK{Kty: "OKP", Crv: "Ed25519", Kid: "a", X: "AAAA"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, ks.AddJWK(tt.jwk))
		})
	}
	require.False(t, ks.IsReady())
}

func TestNewEdDSASigner_Validation(t *testing.T) {
	priv, err := cryptox.GenerateEd25519()
	require.NoError(t, err)

	_, err = jwtx.NewEdDSASigner("", priv)
	require.Error(t, err)

	_, err = jwtx.NewEdDSASigner("k", priv[:10])
	require.Error(t, err)
}
