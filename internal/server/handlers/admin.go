package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	apperrors "github.com/contractlens/contractlens/internal/errors"
	"github.com/contractlens/contractlens/internal/ratelimit"
	"github.com/contractlens/contractlens/internal/stats"
)

// SessionCookieName holds the signed admin session token.
const SessionCookieName = "cl_admin"

const (
	// DefaultLoginLimit and DefaultLoginWindow bound password attempts per IP.
	DefaultLoginLimit  = 5
	DefaultLoginWindow = 15 * time.Minute

	// DefaultRollupDays is the metrics dashboard range.
	DefaultRollupDays = 14
)

// AdminAPI serves the password-gated metrics dashboard endpoints.
type AdminAPI struct {
	Password string
	Sessions *AdminSessions
	Stats    *stats.Store

	Limiter     *ratelimit.Limiter
	LoginLimit  int
	LoginWindow time.Duration

	RollupDays int
}

type loginBody struct {
	Password string `json:"password"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (a *AdminAPI) loginLimit() int {
	if a.LoginLimit > 0 {
		return a.LoginLimit
	}
	return DefaultLoginLimit
}

func (a *AdminAPI) loginWindow() time.Duration {
	if a.LoginWindow > 0 {
		return a.LoginWindow
	}
	return DefaultLoginWindow
}

func (a *AdminAPI) rollupDays() int {
	if a.RollupDays > 0 {
		return a.RollupDays
	}
	return DefaultRollupDays
}

// Login handles POST /api/admin/login. Attempts are rate limited per client
// IP before the password is even inspected.
func (a *AdminAPI) Login(w http.ResponseWriter, r *http.Request) {
	if a.Limiter != nil {
		res := a.Limiter.Allow("admin-login:"+r.RemoteAddr, a.loginLimit(), a.loginWindow())
		if !res.Allowed {
			respondWithError(w, r, apperrors.NewRateLimitedError(
				"Too many login attempts. Try again later.", res.Reset))
			return
		}
	}

	if a.Password == "" {
		respondWithError(w, r, apperrors.NewConfigInvalidError("Admin access is not configured."))
		return
	}

	var body loginBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("Request body must be valid JSON."))
		return
	}

	if subtle.ConstantTimeCompare([]byte(body.Password), []byte(a.Password)) != 1 {
		respondWithError(w, r, apperrors.NewUnauthorizedError("Invalid password."))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    a.Sessions.Issue(),
		Path:     "/",
		MaxAge:   int(a.Sessions.ttl().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Logout handles POST /api/admin/logout by clearing the session cookie.
func (a *AdminAPI) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// Metrics handles GET /api/admin/metrics, returning the recent-day rollup for
// authenticated sessions.
func (a *AdminAPI) Metrics(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		respondWithError(w, r, apperrors.NewUnauthorizedError("Admin session required."))
		return
	}

	rollup, err := a.Stats.ReadRollup(r.Context(), a.rollupDays())
	if err != nil {
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "Could not load metrics."))
		return
	}

	writeJSON(w, http.StatusOK, rollup)
}

func (a *AdminAPI) authorized(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	return a.Sessions.Valid(cookie.Value)
}
