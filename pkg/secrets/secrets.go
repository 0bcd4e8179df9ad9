// Package secrets generates and verifies the opaque secret values issued as
// API keys. Plaintext secrets exist only in memory between Generate and the
// issuance response; everything persisted goes through Hash.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "keymint/pkg/domain-errors"
)

// Length is the character length of every generated secret: 32 random bytes
// rendered as unpadded URL-safe base64.
const Length = 43

// Generate creates a cryptographically secure random secret.
// Returns a base64-encoded string with 256 bits of entropy.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash creates a bcrypt digest of the provided secret.
// Use this to securely store secrets for later verification.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeValidation, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "secret is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash secret")
	}
	return string(hashed), nil
}

// Compare checks a plaintext secret against a bcrypt digest. The comparison
// cost does not depend on where a mismatch occurs within the secret.
func Compare(secret, digest string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid secret")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify secret")
	}
	return nil
}
