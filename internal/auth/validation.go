package auth

import (
	"fmt"
)

// ValidatePassword checks the password against length requirements.
// Minimum 12 characters by default, no character class requirements.
func ValidatePassword(password string, minLength int) error {
	if minLength == 0 {
		minLength = 12
	}

	if len(password) < minLength {
		return fmt.Errorf("password must be at least %d characters long", minLength)
	}

	// Cap length to keep argon2 hashing cost bounded
	if len(password) > 128 {
		return fmt.Errorf("password must be at most 128 characters long")
	}

	return nil
}
