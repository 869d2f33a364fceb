package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher wraps bcrypt with a fixed cost factor. The cost is validated once at
// construction so a misconfigured deployment fails at startup, not on the
// first registration.
type Hasher struct {
	cost int
}

// New returns a Hasher with the given bcrypt cost.
func New(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Hasher{cost: cost}, nil
}

// Hash produces a salted bcrypt hash. Each call salts independently, so two
// hashes of the same plaintext never compare byte-equal.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("empty password")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches hash. bcrypt's comparison does not
// early-exit on the first differing byte. Malformed hashes verify as false
// rather than erroring, so a corrupted row cannot be probed apart from a
// wrong password.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
