// Package secret issues and verifies API token secrets.
//
// A secret is "vh_" followed by 44 URL-safe base64 characters drawn from
// crypto/rand, 47 characters total. The first 8 characters form the public
// prefix, stored in clear for lookup and display. Only a bcrypt hash of the
// full secret is ever persisted; the plaintext leaves the process exactly
// once, in the create/regenerate response.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// PrefixLen is the number of leading secret characters stored in clear.
	PrefixLen = 8

	secretPrefix = "vh_"
	randomBytes  = 33 // 44 base64url characters
)

// Issue generates a fresh secret and returns it with its prefix and bcrypt
// hash. The caller must hand the secret to the client and drop it.
func Issue() (secret, prefix, hash string, err error) {
	buf := make([]byte, randomBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("generate secret: %w", err)
	}
	secret = secretPrefix + base64.RawURLEncoding.EncodeToString(buf)
	prefix = secret[:PrefixLen]

	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hash secret: %w", err)
	}
	return secret, prefix, string(h), nil
}

// Verify compares a presented secret against a stored hash. bcrypt's
// comparison is constant time.
func Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
