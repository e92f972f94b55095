package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the amount of randomness in a session token (256 bits).
const tokenBytes = 32

// GenerateToken returns a fresh URL-safe bearer token.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Digester turns raw tokens into the value stored server-side.
type Digester struct {
	secret []byte
}

// NewDigester returns a Digester keyed with secret. An empty secret falls
// back to plain SHA-256.
func NewDigester(secret []byte) *Digester {
	return &Digester{secret: secret}
}

// Digest returns the hex digest of token: HMAC-SHA256 when a secret is set.
func (d *Digester) Digest(token string) string {
	if len(d.secret) == 0 {
		sum := sha256.Sum256([]byte(token))
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha256.New, d.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
