package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used when generating token hashes.
const DefaultBcryptCost = 12

var ErrInvalidToken = errors.New("invalid token")

// GenerateAPIToken creates a cryptographically secure random token.
// Returns the plaintext token (to show the user once) and its bcrypt hash (for configuration).
func GenerateAPIToken(cost int) (plaintext string, hash string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", err
	}
	plaintext = hex.EncodeToString(bytes)

	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", "", err
	}
	return plaintext, string(h), nil
}

// CheckToken compares a token with its bcrypt hash.
func CheckToken(token, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidToken
		}
		return err
	}
	return nil
}

// fingerprint is a SHA-256 digest used to remember tokens that already passed bcrypt.
func fingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
