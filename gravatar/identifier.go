// Package gravatar is a client for the Gravatar v3 REST API and the avatar
// image endpoint.
package gravatar

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrEmptyInput is returned when an email or identifier is empty or only
// whitespace.
var ErrEmptyInput = errors.New("input is empty")

// Normalize prepares an email address for hashing: trimmed and lowercased.
func Normalize(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", ErrEmptyInput
	}
	return strings.ToLower(trimmed), nil
}

// Identifier derives the SHA-256 hex identifier for an email address. The
// same email always yields the same identifier regardless of case or
// surrounding whitespace.
func Identifier(email string) (string, error) {
	normalized, err := Normalize(email)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), nil
}
