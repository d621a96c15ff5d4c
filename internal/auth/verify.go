package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/rajasatyajit/IssueRadar/internal/errors"
)

// Verifier checks operator tokens against a configured bcrypt hash
type Verifier struct {
	hash []byte
}

// NewVerifier creates a verifier. An empty hash disables verification.
func NewVerifier(tokenHash string) *Verifier {
	return &Verifier{hash: []byte(strings.TrimSpace(tokenHash))}
}

// Enabled reports whether a token is required
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

// Verify returns the principal for raw, or ErrUnauthorized
func (v *Verifier) Verify(raw string) (*Principal, error) {
	if !v.Enabled() {
		return &Principal{Subject: "anonymous", Method: "open"}, nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(raw)); err != nil {
		return nil, apperrors.ErrUnauthorized
	}
	return &Principal{Subject: "operator", Method: "token"}, nil
}

// ParseAuthorization extracts the token from an Authorization style header
// value, accepting both "Bearer <token>" and a bare token.
func ParseAuthorization(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return header
}
