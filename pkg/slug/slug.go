// Package slug generates short public identifiers and allocates them against
// a store that enforces uniqueness.
package slug

import (
	"crypto/rand"
	"errors"
	"io"
)

// Alphabet is the symbol set used by Random: lowercase ASCII letters and digits.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength is the length of allocated invoice slugs.
const DefaultLength = 8

// acceptBelow is the largest multiple of len(Alphabet) that fits in a byte.
// Bytes at or above it are rejected so every symbol is equally likely.
const acceptBelow = 256 - 256%len(Alphabet)

// Random returns n symbols drawn uniformly from Alphabet using crypto/rand.
func Random(n int) (string, error) {
	return randomFrom(rand.Reader, n)
}

func randomFrom(r io.Reader, n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidLength
	}

	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", errors.Join(ErrRandomSource, err)
		}
		for _, b := range buf {
			if int(b) >= acceptBelow {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// Valid reports whether s has length n and only contains Alphabet symbols.
func Valid(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
