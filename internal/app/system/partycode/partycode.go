// Package partycode generates the short public codes participants type to
// join a party.
package partycode

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// Length is the fixed code length.
const Length = 6

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var codeRE = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// maxAccept is the largest multiple of len(charset) that fits in a byte.
// Bytes at or above it are redrawn so every character is equally likely.
const maxAccept = 256 - 256%len(charset)

// New returns a random 6-character uppercase alphanumeric code. Uniqueness
// is enforced by the parties collection's unique index, not here; callers
// retry on a duplicate-key insert.
func New() (string, error) {
	out := make([]byte, 0, Length)
	buf := make([]byte, Length)
	for len(out) < Length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("partycode: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxAccept {
				continue
			}
			out = append(out, charset[int(b)%len(charset)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out), nil
}

// Normalize upper-cases and trims a user-typed code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether a (normalized) code has the expected shape.
func Valid(code string) bool {
	return codeRE.MatchString(code)
}
