// Package digest computes content fingerprints for change detection.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Sum returns the lowercase hex SHA-256 digest of content. The digest is
// used purely as a change-detection fingerprint, not for security.
func Sum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// File reads path and returns its digest. An unreadable unit cannot be
// classified as changed or unchanged, so the error is surfaced to the
// caller rather than swallowed.
func File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return Sum(data), nil
}
