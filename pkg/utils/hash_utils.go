package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short, stable identifier for a secret such as an API
// key. It is safe to log and to use as a cache key.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}

// HashURL returns the full hex SHA-256 of a URL string.
func HashURL(url string) string {
	if url == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
