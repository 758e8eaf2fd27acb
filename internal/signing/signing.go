// Package signing produces short-lived HMAC signatures for archive download
// URLs so browsers can fetch the file without carrying the bearer header.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Signer generates and validates signatures over (sessionID, expiry) pairs.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign returns the hex signature binding sessionID to an expiry instant.
func (s *Signer) Sign(sessionID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", sessionID, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedQuery builds the query parameters for a signed download URL valid
// for ttl from now.
func (s *Signer) SignedQuery(sessionID string, ttl time.Duration) (url.Values, int64) {
	expiry := time.Now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expiry, 10))
	q.Set("signature", s.Sign(sessionID, expiry))
	return q, expiry
}

// Validate checks signature against sessionID and the expires parameter, and
// rejects expired signatures.
func (s *Signer) Validate(sessionID, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	if time.Unix(exp, 0).Before(time.Now()) {
		return false
	}
	expected := s.Sign(sessionID, exp)
	return hmac.Equal([]byte(expected), []byte(signature))
}
