// Package auth implements the shared-secret gate in front of the download
// API. The bearer token is a fixed encoding of the secret, not a per-user
// session; whoever knows the password holds the token.
package auth

import (
	"crypto/hmac"
	"encoding/base64"
	"net/http"
	"strings"
)

// Gate validates the shared password and the bearer tokens derived from it.
type Gate struct {
	secret string
	token  string
}

// NewGate builds a Gate around the shared secret.
func NewGate(secret string) *Gate {
	return &Gate{
		secret: secret,
		token:  base64.StdEncoding.EncodeToString([]byte(secret)),
	}
}

// ValidatePassword reports whether password matches the shared secret.
func (g *Gate) ValidatePassword(password string) bool {
	return hmac.Equal([]byte(password), []byte(g.secret))
}

// Token returns the bearer token handed out after a successful validation.
func (g *Gate) Token() string {
	return g.token
}

// ValidateToken reports whether token is the expected bearer token.
func (g *Gate) ValidateToken(token string) bool {
	return hmac.Equal([]byte(token), []byte(g.token))
}

// Middleware rejects requests lacking a valid bearer token with 401.
func (g *Gate) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.Authorized(r) {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// Authorized checks the Authorization header on r.
func (g *Gate) Authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	return g.ValidateToken(strings.TrimPrefix(header, "Bearer "))
}
