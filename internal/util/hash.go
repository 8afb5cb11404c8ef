package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// TextKey is the hex sha256 of s, used to key cached query embeddings.
func TextKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
