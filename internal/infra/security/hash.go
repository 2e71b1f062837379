package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken produces a hex-encoded SHA-256 digest. Used to derive storage
// keys from identifiers so raw emails never appear as cache keys.
func HashToken(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
