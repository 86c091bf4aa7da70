package game

import (
	"crypto/subtle"
	"fmt"

	"rps_arena/internal/crypto"
	"rps_arena/internal/domain"
)

const (
	// SaltSize is the exact length of a commitment salt.
	SaltSize = 32
	// DigestSize is the keccak256 output length.
	DigestSize = 32

	maxPlaceholderPeriod = 4
)

// Commit computes keccak256(move || salt).
func Commit(move domain.Move, salt []byte) ([]byte, error) {
	if !move.Valid() {
		return nil, fmt.Errorf("%w: move must be 1, 2 or 3, got %d", ErrBadRequest, move)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrBadRequest, SaltSize, len(salt))
	}
	return crypto.Keccak256([]byte{byte(move)}, salt), nil
}

// Verify reports whether digest commits to (move, salt).
func Verify(move domain.Move, salt, digest []byte) bool {
	if len(salt) != SaltSize || len(digest) != DigestSize {
		return false
	}
	want, err := Commit(move, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(want, digest) == 1
}

// CheckDigest rejects malformed and placeholder commitments: wrong length, all zeros,
// or bytes repeating with a short period (0xabab..., 0x01020304...).
func CheckDigest(digest []byte) error {
	if len(digest) != DigestSize {
		return fmt.Errorf("%w: digest must be %d bytes, got %d", ErrBadRequest, DigestSize, len(digest))
	}
	for period := 1; period <= maxPlaceholderPeriod; period++ {
		if repeats(digest, period) {
			return fmt.Errorf("%w: digest looks like a placeholder", ErrBadRequest)
		}
	}
	return nil
}

func repeats(b []byte, period int) bool {
	for i := period; i < len(b); i++ {
		if b[i] != b[i%period] {
			return false
		}
	}
	return true
}
