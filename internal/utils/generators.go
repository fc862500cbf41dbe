package utils

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// NewUUID returns a random v4 UUID string used as an external id.
func NewUUID() string {
	return uuid.NewString()
}

// ValidUUID reports whether s parses as a UUID.
func ValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// GenerateToken returns n random bytes, URL-safe encoded.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
