package util

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
)

// FileName returns a filesystem-safe, fixed-length name for key
// (first 16 bytes of sha256, hex encoded) with the given extension.
func FileName(key, ext string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + ext
}

// Stripe maps key onto one of n lock stripes. n must be > 0.
func Stripe(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
