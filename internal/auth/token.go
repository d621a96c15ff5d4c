package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// TokenPrefix marks operator tokens so they are recognizable in logs and config
const TokenPrefix = "ir_"

// GenerateToken returns a new random operator token and its bcrypt hash
func GenerateToken() (raw string, hash string, err error) {
	secret := randomToken(32)
	if secret == "" {
		return "", "", fmt.Errorf("failed to generate token")
	}
	raw = TokenPrefix + secret
	hash, err = HashToken(raw)
	if err != nil {
		return "", "", err
	}
	return raw, hash, nil
}

// HashToken bcrypt-hashes a raw token for storage in configuration
func HashToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("token must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(h), nil
}

func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	// URL-safe base64 without padding, then trim to n chars
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) > n {
		return s[:n]
	}
	return s
}
