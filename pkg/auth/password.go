package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	MinBcryptCost     = bcrypt.MinCost
	MaxBcryptCost     = bcrypt.MaxCost
)

// HashPassword produces a salted adaptive bcrypt digest of the password.
// The digest is self-describing: cost and salt are embedded in it.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if cost < MinBcryptCost || cost > MaxBcryptCost {
		cost = DefaultBcryptCost
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// VerifyPassword reports whether password matches the digest. A malformed
// digest is treated as a mismatch, never an error.
func VerifyPassword(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// SelfCheck exercises the hashing backend with a probe value. Credentials
// cannot be handled safely if this fails, so callers must treat an error as
// fatal at startup.
func SelfCheck() error {
	digest, err := HashPassword("startup-probe", MinBcryptCost)
	if err != nil {
		return fmt.Errorf("hashing backend unavailable: %w", err)
	}
	if !VerifyPassword("startup-probe", digest) {
		return fmt.Errorf("hashing backend failed verification probe")
	}
	return nil
}
