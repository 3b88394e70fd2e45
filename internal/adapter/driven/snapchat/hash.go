package snapchat

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashIdentity pseudonymizes an email address for transmission: lower-cased,
// whitespace-trimmed, then SHA-256 hex. One-way; the raw address never
// leaves the process.
func HashIdentity(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
