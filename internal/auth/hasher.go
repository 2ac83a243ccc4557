// Package auth provides password hashing, opaque token generation and
// request-context helpers for the authenticated session.
package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Supported hashing algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// ErrPasswordTooLong is returned when the selected algorithm cannot hash the
// whole password without truncation.
var ErrPasswordTooLong = errors.New("password exceeds algorithm input limit")

// HasherConfig tunes the cost of new hashes. Verification always uses the
// parameters embedded in the stored hash.
type HasherConfig struct {
	Algorithm      string
	BcryptCost     int
	Argon2Time     uint32
	Argon2MemoryKB uint32
	Argon2Threads  uint8
}

// DefaultHasherConfig returns bcrypt with cost 12.
func DefaultHasherConfig() HasherConfig {
	return HasherConfig{
		Algorithm:      AlgorithmBcrypt,
		BcryptCost:     12,
		Argon2Time:     argon2Time,
		Argon2MemoryKB: argon2Memory,
		Argon2Threads:  argon2Threads,
	}
}

// Hasher produces self-describing salted password hashes.
// It is safe for concurrent use.
type Hasher struct {
	cfg HasherConfig
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg HasherConfig) (*Hasher, error) {
	switch cfg.Algorithm {
	case AlgorithmBcrypt:
		if err := validateBcryptCost(cfg.BcryptCost); err != nil {
			return nil, err
		}
	case AlgorithmArgon2id:
		if cfg.Argon2Time == 0 || cfg.Argon2MemoryKB == 0 || cfg.Argon2Threads == 0 {
			return nil, fmt.Errorf("argon2id parameters must be positive")
		}
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", cfg.Algorithm)
	}
	return &Hasher{cfg: cfg}, nil
}

// Algorithm returns the algorithm used for new hashes.
func (h *Hasher) Algorithm() string {
	return h.cfg.Algorithm
}

// Hash returns a fresh hash of password. Two calls with the same input
// return different strings because each call draws a new salt.
func (h *Hasher) Hash(password string) (string, error) {
	if h.cfg.Algorithm == AlgorithmArgon2id {
		return hashArgon2(password, h.cfg.Argon2Time, h.cfg.Argon2MemoryKB, h.cfg.Argon2Threads)
	}
	return hashBcrypt(password, h.cfg.BcryptCost)
}

// Verify reports whether password matches encodedHash.
// A malformed or unknown hash never matches.
func (h *Hasher) Verify(password, encodedHash string) bool {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		ok, err := VerifyPassword(password, encodedHash)
		return err == nil && ok
	case strings.HasPrefix(encodedHash, "$2"):
		return verifyBcrypt(password, encodedHash)
	default:
		return false
	}
}
