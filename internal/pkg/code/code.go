// Package code generates and fingerprints one-time verification codes.
// Plaintext codes exist only long enough to be handed to the notification
// dispatcher; storage sees the SHA-256 digest.
package code

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
)

const (
	digits       = "0123456789"
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Numeric returns a cryptographically random code of n decimal digits.
func Numeric(n int) (string, error) {
	return random(n, digits)
}

// Alphanumeric returns a cryptographically random code of n characters drawn
// from [a-zA-Z0-9].
func Alphanumeric(n int) (string, error) {
	return random(n, alphanumeric)
}

func random(n int, alphabet string) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", n)
	}
	b := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

// Digest returns the base64url SHA-256 fingerprint of a code. This is what
// gets persisted.
func Digest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Matches compares a submitted code against a stored digest in constant time.
func Matches(submitted, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(submitted)), []byte(digest)) == 1
}
