package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const cost = 12

// Hash hashes a secret (password or transaction PIN) using bcrypt
func Hash(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	return string(bytes), err
}

// HashWithCost is Hash with an explicit cost; tests use bcrypt.MinCost.
func HashWithCost(secret string, c int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), c)
	return string(bytes), err
}

// Verify compares a secret with its hash. A malformed hash is an error,
// a mismatch is not.
func Verify(secret, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
