package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// HashKey creates a bcrypt hash from an uplink key.
// cost is bcrypt.DefaultCost in production, tests pass bcrypt.MinCost.
func HashKey(key string, cost int) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// VerifyKey checks if the provided key matches the stored bcrypt hash.
func VerifyKey(hashedKey, providedKey string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(providedKey))
}

// IsHash reports whether s looks like a bcrypt hash
func IsHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}
