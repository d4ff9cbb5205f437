package jwtx

// Supported signing algorithms.
const (
	AlgorithmEdDSA = "EdDSA"
	AlgorithmHS256 = "HS256"
)

// Signer is anything that can sign our claims.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
}

// PublicSigner is a Signer whose verification key may be published in a JWKS.
type PublicSigner interface {
	Signer
	PublicJWK() JWK
}
