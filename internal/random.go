package internal

import (
	"crypto/rand"
	"encoding/hex"
)

const opaqueTokenBytes = 32

// NewOpaqueToken returns 32 random bytes hex-encoded, the raw material
// for refresh and single-use tokens delivered to callers. Only the
// SHA-256 of the returned string is ever persisted.
func NewOpaqueToken() (string, error) {
	raw := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
