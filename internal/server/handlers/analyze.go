package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/contractlens/contractlens/internal/analyze"
	apperrors "github.com/contractlens/contractlens/internal/errors"
)

const (
	// QuotaCookieName holds the visitor's signed last-use token.
	QuotaCookieName = "cl_last_analysis"

	maxUploadBytes = 15 << 20
)

// AnalyzeAPI serves the document analysis surface.
type AnalyzeAPI struct {
	Analyzer *analyze.Analyzer

	// QuotaWindow bounds the quota cookie lifetime.
	QuotaWindow time.Duration
}

type analyzeJSONBody struct {
	TextOverride string `json:"textOverride"`
}

type analyzeResponse struct {
	Summary  []string `json:"summary"`
	Risks    []string `json:"risks"`
	Detailed string   `json:"detailed"`
	Text     string   `json:"text"`
	Mock     bool     `json:"mock,omitempty"`
}

// Analyze handles POST /api/analyze. It accepts either a multipart upload
// under the "file" field or a JSON body with a textOverride.
func (a *AnalyzeAPI) Analyze(w http.ResponseWriter, r *http.Request) {
	req := analyze.Request{
		Country: countryFromRequest(r),
	}
	if cookie, err := r.Cookie(QuotaCookieName); err == nil {
		req.Token = cookie.Value
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			respondWithError(w, r, apperrors.NewInvalidInputError("Could not parse the upload."))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondWithError(w, r, apperrors.NewInvalidInputError("The upload is missing a \"file\" field."))
			return
		}
		defer file.Close() // nolint:errcheck // best-effort cleanup

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			respondWithError(w, r, apperrors.NewInvalidInputError("Could not read the uploaded file."))
			return
		}
		if len(data) > maxUploadBytes {
			respondWithError(w, r, apperrors.NewInvalidInputError("The uploaded file is too large."))
			return
		}

		req.FileData = data
		req.FileName = header.Filename
		req.DeclaredType = header.Header.Get("Content-Type")

	default:
		var body analyzeJSONBody
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&body); err != nil {
			respondWithError(w, r, apperrors.NewInvalidInputError("Request body must be valid JSON or a multipart upload."))
			return
		}
		if strings.TrimSpace(body.TextOverride) == "" {
			respondWithError(w, r, apperrors.NewInvalidInputError("Provide a file upload or a non-empty textOverride."))
			return
		}
		req.TextOverride = body.TextOverride
	}

	out := a.Analyzer.Analyze(r.Context(), req)

	switch out.Kind {
	case analyze.KindOK:
		a.setQuotaCookie(w, out.NewToken)
		writeJSON(w, http.StatusOK, analyzeResponse{
			Summary:  out.Summary,
			Risks:    out.Risks,
			Detailed: out.Detailed,
			Text:     out.ExtractedText,
			Mock:     out.Mock,
		})

	case analyze.KindLimited:
		respondWithError(w, r, apperrors.NewQuotaExceededError(
			"You have already used your free analysis. Try again later.", out.RetryAfter))

	case analyze.KindNoText:
		if out.Unsupported {
			respondWithError(w, r, apperrors.NewUnsupportedFormatError(out.Message))
			return
		}
		respondWithError(w, r, apperrors.NewNoTextError(out.Message))

	case analyze.KindOCRFailed:
		respondWithError(w, r, apperrors.NewOCRFailedError(out.Message))

	default:
		if out.Upstream {
			respondWithError(w, r, apperrors.NewUpstreamModelError(
				"The analysis service is temporarily unavailable. Please try again."))
			return
		}
		respondWithError(w, r, apperrors.NewInternalError("Analysis failed."))
	}
}

func (a *AnalyzeAPI) setQuotaCookie(w http.ResponseWriter, token string) {
	if token == "" {
		return
	}

	window := a.QuotaWindow
	if window <= 0 {
		window = 24 * time.Hour
	}

	http.SetCookie(w, &http.Cookie{
		Name:     QuotaCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(window.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// countryFromRequest resolves the caller's country from edge headers. The
// CDN-populated header wins over the explicit one.
func countryFromRequest(r *http.Request) string {
	if country := strings.TrimSpace(r.Header.Get("CF-IPCountry")); country != "" {
		return country
	}
	return strings.TrimSpace(r.Header.Get("X-Country"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
