package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

// Session ids are 32 random bytes, hex encoded.
const sessionIDBytes = 32

var sessionIDPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// NewSessionID returns an unguessable session identifier for the session cookie.
func NewSessionID() (string, error) {
	return randomHex(sessionIDBytes)
}

// ValidSessionID reports whether id has the shape produced by NewSessionID.
// Cookies failing this check are ignored without a store lookup.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// NewState returns a random value for the OIDC state parameter.
func NewState() (string, error) {
	return randomHex(16)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
