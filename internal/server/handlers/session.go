package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultSessionTTL is how long an admin session cookie stays valid.
const DefaultSessionTTL = 8 * time.Hour

// AdminSessions issues and validates stateless admin session tokens. A token
// is the session expiry in epoch millis signed with a per-process secret, so
// restarting the server invalidates all sessions.
type AdminSessions struct {
	TTL   time.Duration
	Clock func() time.Time

	secret []byte
}

// NewAdminSessions creates a session issuer with a fresh random secret.
func NewAdminSessions(ttl time.Duration) *AdminSessions {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)

	return &AdminSessions{
		TTL:    ttl,
		secret: secret,
	}
}

func (s *AdminSessions) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *AdminSessions) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultSessionTTL
}

// Issue returns a new signed session token.
func (s *AdminSessions) Issue() string {
	expiry := strconv.FormatInt(s.now().Add(s.ttl()).UnixMilli(), 10)
	return expiry + "." + s.sign(expiry)
}

// Valid reports whether the token is authentic and unexpired.
func (s *AdminSessions) Valid(token string) bool {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}

	if !hmac.Equal([]byte(s.sign(payload)), []byte(sig)) {
		return false
	}

	millis, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return false
	}
	return s.now().UnixMilli() < millis
}

func (s *AdminSessions) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
