// Package pkce generates the random material for an OAuth2 authorization
// code flow: the RFC 7636 verifier/challenge pair and the state and nonce
// correlation tokens. All randomness comes from crypto/rand.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// MethodS256 is the only challenge derivation method this package produces.
const MethodS256 = "S256"

const (
	verifierBytes = 32
	tokenBytes    = 16
)

// Challenge holds a PKCE code verifier and its derived challenge.
// The verifier must be kept secret until the token exchange; only the
// challenge travels in the authorization request.
type Challenge struct {
	// Verifier is the PKCE code verifier: 32 random bytes encoded as
	// base64url without padding (43 characters, within RFC 7636's 43-128).
	Verifier string

	// CodeChallenge is BASE64URL(SHA256(ASCII(verifier))), no padding.
	CodeChallenge string

	// Method is always "S256".
	Method string
}

// Generate creates a fresh verifier/challenge pair.
func Generate() (Challenge, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return Challenge{}, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(b)

	return Challenge{
		Verifier:      verifier,
		CodeChallenge: DeriveChallenge(verifier),
		Method:        MethodS256,
	}, nil
}

// DeriveChallenge computes the S256 challenge for a verifier.
// Re-deriving at exchange time must reproduce what the authorization
// request carried.
func DeriveChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewState creates a random state parameter for CSRF correlation.
// 16 random bytes encoded as base64url without padding.
func NewState() (string, error) {
	return randomToken()
}

// NewNonce creates a random nonce parameter, generated independently
// from the state.
func NewNonce() (string, error) {
	return randomToken()
}

func randomToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
