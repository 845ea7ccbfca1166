// Package id generates and validates opaque entity identifiers.
package id

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidID indicates a string is not a well-formed identifier.
var ErrInvalidID = errors.New("invalid identifier")

const encodedLen = 26

// NewID generates a URL-safe identifier using UUIDv4 bytes encoded as base32.
// The identifier is 26 characters long, lowercase, and contains no padding.
func NewID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	// RFC 4122 variant and version bits for a v4 UUID.
	raw[6] = (raw[6] & 0x0f) | 0x40
	raw[8] = (raw[8] & 0x3f) | 0x80

	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw[:])
	return strings.ToLower(encoded), nil
}

// Validate reports whether s is a syntactically valid identifier as produced
// by NewID: 26 lowercase base32 characters decoding to 16 bytes.
func Validate(s string) error {
	if len(s) != encodedLen {
		return ErrInvalidID
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '2' || r > '7') {
			return ErrInvalidID
		}
	}
	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(s))
	if err != nil || len(decoded) != 16 {
		return ErrInvalidID
	}
	return nil
}
