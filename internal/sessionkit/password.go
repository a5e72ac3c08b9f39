package sessionkit

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes plaintext credentials and compares candidates against
// stored digests.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext string, digest string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher constructs a BcryptHasher; cost values outside the bcrypt
// range fall back to the default cost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash derives a bcrypt digest from the plaintext password.
func (hasher *BcryptHasher) Hash(plaintext string) (string, error) {
	digest, hashErr := bcrypt.GenerateFromPassword([]byte(plaintext), hasher.cost)
	if hashErr != nil {
		return "", fmt.Errorf("session.password.hash: %w", hashErr)
	}
	return string(digest), nil
}

// Compare reports whether the plaintext matches the stored digest. bcrypt
// comparison is constant time with respect to the digest contents.
func (hasher *BcryptHasher) Compare(plaintext string, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
