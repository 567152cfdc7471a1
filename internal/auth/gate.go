// Package auth implements the shared-secret gate in front of the download API.
package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Gate checks passwords against a configured secret or bcrypt hash.
type Gate struct {
	secret string
	hash   []byte
}

// NewGate creates a Gate. When hash is set it takes precedence over secret.
func NewGate(secret, hash string) *Gate {
	g := &Gate{secret: strings.TrimSpace(secret)}
	if h := strings.TrimSpace(hash); h != "" {
		g.hash = []byte(h)
	}
	return g
}

// Enabled reports whether any secret is configured.
func (g *Gate) Enabled() bool {
	return g.secret != "" || len(g.hash) > 0
}

// Authorize reports whether password matches the configured secret after trimming.
// A gate without a secret never authorizes.
func (g *Gate) Authorize(password string) bool {
	password = strings.TrimSpace(password)
	if password == "" {
		return false
	}
	if len(g.hash) > 0 {
		return bcrypt.CompareHashAndPassword(g.hash, []byte(password)) == nil
	}
	if g.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(g.secret), []byte(password)) == 1
}

// HashSecret returns a bcrypt hash suitable for auth.secret_hash.
func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(secret)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
