// Package idgen generates prefixed public identifiers such as
// "conv_a1b2c3" and "msg_d4e5f6".
package idgen

import (
	"crypto/rand"
	"errors"
	"fmt"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSecureID returns an identifier of the form "<prefix>_<random>"
// where random is `length` characters drawn from a crypto/rand source.
func GenerateSecureID(prefix string, length int) (string, error) {
	if prefix == "" {
		return "", errors.New("prefix is required")
	}
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}

	return prefix + "_" + string(buf), nil
}

// MustGenerateSecureID is GenerateSecureID for call sites where the only
// failure mode is an exhausted entropy source.
func MustGenerateSecureID(prefix string, length int) string {
	id, err := GenerateSecureID(prefix, length)
	if err != nil {
		panic(err)
	}
	return id
}
