package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 10

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword returns nil when password matches hash. bcrypt compares in
// constant time.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// ExternalPlaceholderHash returns a random value stored as the password hash of
// externally authenticated accounts. It is not bcrypt encoded, so CheckPassword
// always fails against it.
func ExternalPlaceholderHash() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "external:" + hex.EncodeToString(buf)
}

// EqualSecret compares two short secrets in constant time.
func EqualSecret(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
