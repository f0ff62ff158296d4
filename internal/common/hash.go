package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex hashes the input with SHA-256 and returns the lowercase hex
// digest. Idempotency keys are hashed before storage so raw client-chosen
// keys never appear in Redis.
func Sha256Hex(input string) string {
	h := sha256.New()
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}
