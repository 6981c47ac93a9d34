// Package token issues opaque bearer tokens for customer-facing document
// access. Possession of a token is the only authorization: tokens carry no
// internal structure, are generated once at document creation, and are never
// rotated.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const rawLen = 32

// Issuer produces a new opaque token. It is a func type so tests can inject
// deterministic values.
type Issuer func() (string, error)

// NewIssuer returns an Issuer backed by crypto/rand. Tokens are 32 random
// bytes encoded as unpadded URL-safe base64 (43 characters).
func NewIssuer() Issuer {
	return func() (string, error) {
		buf := make([]byte, rawLen)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("token: read random: %w", err)
		}
		return base64.RawURLEncoding.EncodeToString(buf), nil
	}
}
