package oauth

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashForLogging creates a SHA256 hash of sensitive data for safe logging.
// This prevents leaking codes, tokens, or session IDs in log files.
// Returns the first 16 characters of the hex-encoded hash for brevity.
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
