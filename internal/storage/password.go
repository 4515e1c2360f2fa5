package storage

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// passwordHashCost matches the bcrypt work factor the service has always used
// for stored credentials.
const passwordHashCost = 12

// HashPassword derives a salted bcrypt digest from the plaintext password.
func HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// VerifyPassword compares the candidate plaintext against the stored digest.
// A mismatch yields ErrInvalidCredentials; any other failure (malformed
// digest, unsupported version) is an operational error and propagates wrapped.
func VerifyPassword(encodedHash, candidate string) error {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(candidate))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidCredentials
	}
	return fmt.Errorf("verify password: %w", err)
}
