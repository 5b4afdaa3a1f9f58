// Package quota gates visitors to one analysis per rolling window.
//
// The server keeps no per-visitor table: the client holds a token encoding its
// own last-use timestamp, and presents it on each request. A client that
// discards or forges the token can bypass the gate; that is an accepted trust
// boundary for a public demo limiter, not a security control.
package quota

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultWindow is the rolling window between countable analyses.
const DefaultWindow = 24 * time.Hour

// Decision reports whether a visitor may run an analysis now.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Tracker validates and mints visitor tokens.
type Tracker struct {
	// Window between countable uses; DefaultWindow when zero.
	Window time.Duration

	// Secret signs tokens with HMAC-SHA256. When empty, tokens are the bare
	// millisecond timestamp, matching clients issued before signing existed.
	Secret string

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

func (t *Tracker) now() time.Time {
	if t.Clock != nil {
		return t.Clock()
	}
	return time.Now()
}

func (t *Tracker) window() time.Duration {
	if t.Window > 0 {
		return t.Window
	}
	return DefaultWindow
}

// Check parses the presented token and decides whether a new analysis is
// allowed. An absent, unparseable, or tampered token counts as never used.
// Callers must re-issue the token via Issue only on countable outcomes.
func (t *Tracker) Check(token string) Decision {
	lastUse := t.parse(token)
	if lastUse <= 0 {
		return Decision{Allowed: true}
	}

	now := t.now().UnixMilli()
	elapsed := now - lastUse
	windowMs := t.window().Milliseconds()
	if elapsed >= windowMs {
		return Decision{Allowed: true}
	}

	remainingMs := lastUse + windowMs - now
	retry := time.Duration((remainingMs+999)/1000) * time.Second
	if retry < time.Second {
		retry = time.Second
	}
	return Decision{Allowed: false, RetryAfter: retry}
}

// Issue mints the replacement token marking a use at the current time.
func (t *Tracker) Issue() string {
	millis := strconv.FormatInt(t.now().UnixMilli(), 10)
	if t.Secret == "" {
		return millis
	}
	return millis + "." + t.sign(millis)
}

// parse returns the last-use epoch millis encoded in token, or 0 when the
// token is absent, malformed, or fails signature verification.
func (t *Tracker) parse(token string) int64 {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0
	}

	millisPart := token
	if t.Secret != "" {
		// Tokens minted before signing existed are bare timestamps; they
		// still count as a use so holders do not regain a fresh quota.
		if part, sig, ok := strings.Cut(token, "."); ok {
			if !hmac.Equal([]byte(sig), []byte(t.sign(part))) {
				return 0
			}
			millisPart = part
		}
	}

	millis, err := strconv.ParseInt(millisPart, 10, 64)
	if err != nil || millis < 0 {
		return 0
	}
	return millis
}

func (t *Tracker) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(t.Secret))
	fmt.Fprint(mac, payload)
	return hex.EncodeToString(mac.Sum(nil))
}
