package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashURL returns the hex SHA-256 of a URL, used as the mention dedup key
func HashURL(url string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(h[:])
}
