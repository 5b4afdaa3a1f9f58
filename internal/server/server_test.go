package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/contractlens/contractlens/internal/analyze"
	apperrors "github.com/contractlens/contractlens/internal/errors"
	"github.com/contractlens/contractlens/internal/extract"
	"github.com/contractlens/contractlens/internal/quota"
	"github.com/contractlens/contractlens/internal/ratelimit"
	"github.com/contractlens/contractlens/internal/server/handlers"
	"github.com/contractlens/contractlens/internal/stats"
)

type stubExtractor struct {
	result extract.Result
}

func (s stubExtractor) Extract(context.Context, []byte, string, string) extract.Result {
	return s.result
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st := stats.New(nil, 0, nil)
	analyzer := &analyze.Analyzer{
		Quota:    &quota.Tracker{Secret: "test-secret"},
		Pipeline: stubExtractor{result: extract.Result{Format: extract.FormatUnsupported}},
		Stats:    st,
	}

	return New(Options{
		Host:          "127.0.0.1",
		Port:          0,
		Analyzer:      analyzer,
		Stats:         st,
		Limiter:       ratelimit.New(),
		AdminPassword: "hunter2",
		QuotaWindow:   24 * time.Hour,
		Version:       "test",
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.HTTPErrorResponse {
	t.Helper()
	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body handlers.VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "contractlens", body.App.Name)
}

func TestAnalyzeTextOverrideMockFlow(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze",
		strings.NewReader(`{"textOverride":"The tenant shall pay rent monthly."}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Summary []string `json:"summary"`
		Mock    bool     `json:"mock"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.True(t, body.Mock)
	require.NotEmpty(t, body.Summary)

	var quotaCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == handlers.QuotaCookieName {
			quotaCookie = c
		}
	}
	require.NotNil(t, quotaCookie)
	require.NotEmpty(t, quotaCookie.Value)
	require.True(t, quotaCookie.HttpOnly)

	// Second request presenting the token is over quota.
	req = httptest.NewRequest(http.MethodPost, "/api/analyze",
		strings.NewReader(`{"textOverride":"Another document."}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(quotaCookie)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	errBody := decodeError(t, rec)
	require.Equal(t, "QUOTA_EXCEEDED", errBody.Error.Code)
	require.Contains(t, errBody.Error.Details, "retry_after_seconds")
}

func TestAnalyzeRejectsEmptyBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_INPUT", decodeError(t, rec).Error.Code)
}

func TestAnalyzeUnsupportedUpload(t *testing.T) {
	srv := newTestServer(t)

	var buf strings.Builder
	boundary := "testboundary"
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString("Content-Disposition: form-data; name=\"file\"; filename=\"notes.doc\"\r\n")
	buf.WriteString("Content-Type: application/msword\r\n\r\n")
	buf.WriteString("legacy word document bytes\r\n")
	buf.WriteString("--" + boundary + "--\r\n")

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(buf.String()))
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	require.Equal(t, "UNSUPPORTED_FORMAT", decodeError(t, rec).Error.Code)
}

func TestAskMockAnswer(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"contractText":"Clause 1.","question":"What is the term?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Contains(t, body.Answer, "(mock)")
}

func TestAdminMetricsRequiresSession(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/metrics", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Error.Code)
}

func TestAdminLoginAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	// Wrong password first.
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct password issues a session cookie.
	req = httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == handlers.SessionCookieName {
			session = c
		}
	}
	require.NotNil(t, session)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/metrics", nil)
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var rollup stats.Rollup
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rollup))
	require.Len(t, rollup.Days, handlers.DefaultRollupDays)
}

func TestAdminLoginRateLimited(t *testing.T) {
	srv := newTestServer(t)

	var rec *httptest.ResponseRecorder
	for i := 0; i < handlers.DefaultLoginLimit+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:1000"
		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
	}

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "RATE_LIMITED", decodeError(t, rec).Error.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}
