package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewOpaqueToken returns a hex-encoded string built from n bytes of
// cryptographically secure random data. Refresh tokens are generated
// this way; 48 bytes gives 96 hex characters.
func NewOpaqueToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// DigestToken returns the SHA-256 hex digest of a raw token value.
// Only digests are stored server-side, so a leaked table cannot be
// replayed as live sessions.
func DigestToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
