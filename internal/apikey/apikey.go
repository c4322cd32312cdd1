// Package apikey provides one-way hashing and constant-time verification of
// API keys. Hashes are safe to persist and compare; the plaintext key can
// never be reconstructed from them and must never be logged.
package apikey

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	hashVersion = "v1"
	saltSize    = 16
)

var (
	// ErrEmptyKey is returned when hashing an empty plaintext key.
	ErrEmptyKey = errors.New("api key cannot be empty")
	// ErrSaltGeneration is returned when reading random salt bytes fails.
	ErrSaltGeneration = errors.New("failed to generate salt")
)

// Hash returns a salted one-way hash of the plaintext key in the form
// "v1:<salt>:<mac>", using HMAC-SHA256 keyed by a random per-hash salt.
// The same plaintext produces a different hash on every call.
func Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyKey
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Join(ErrSaltGeneration, err)
	}

	return hashVersion + ":" +
		base64.RawURLEncoding.EncodeToString(salt) + ":" +
		base64.RawURLEncoding.EncodeToString(mac(salt, plaintext)), nil
}

// Verify reports whether plaintext matches the encoded hash. Comparison is
// constant time via hmac.Equal. Malformed or unknown-version hashes never
// verify.
func Verify(plaintext, encoded string) bool {
	if plaintext == "" {
		return false
	}

	parts := strings.Split(encoded, ":")
	if len(parts) != 3 || parts[0] != hashVersion {
		return false
	}

	salt, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil || len(salt) != saltSize {
		return false
	}
	want, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}

	return hmac.Equal(mac(salt, plaintext), want)
}

// Fingerprint returns a short stable identifier for a key, suitable for
// rate-limit bucket names and log correlation. It is a truncated SHA-256
// digest: stable across processes, useless for recovering the key.
func Fingerprint(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:8])
}

func mac(salt []byte, plaintext string) []byte {
	h := hmac.New(sha256.New, salt)
	h.Write([]byte(plaintext))
	return h.Sum(nil)
}
