package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/contractlens/contractlens/internal/errors"
)

type askBody struct {
	ContractText string `json:"contractText"`
	Question     string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask handles POST /api/ask, answering a follow-up question about previously
// extracted contract text. Follow-ups ride on the text the client already
// holds, so they do not consume the analysis quota.
func (a *AnalyzeAPI) Ask(w http.ResponseWriter, r *http.Request) {
	var body askBody
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&body); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("Request body must be valid JSON."))
		return
	}

	if strings.TrimSpace(body.ContractText) == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("contractText is required."))
		return
	}

	answer, err := a.Analyzer.Ask(r.Context(), body.ContractText, body.Question)
	if err != nil {
		respondWithError(w, r, apperrors.NewUpstreamModelError(
			"The analysis service is temporarily unavailable. Please try again."))
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}
