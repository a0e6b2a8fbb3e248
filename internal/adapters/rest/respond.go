package rest

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const (
	errCodeValidation = "VALIDATION_FAILED"
	errCodeNoPreview  = "NO_PREVIEW"
	errCodeNotFound   = "NOT_FOUND"
	errCodeUpstream   = "UPSTREAM_FAILED"
	errCodeInternal   = "INTERNAL"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeErrorWithCode(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeDomainError picks the status and code for err. Errors that match none
// of the domain kinds become a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	var upErr *domain.UpstreamError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Code: errCodeValidation, Missing: verr.Missing})
	case errors.Is(err, domain.ErrNoPreview):
		writeErrorWithCode(w, http.StatusNotFound, "no preview available for this track", errCodeNoPreview)
	case errors.Is(err, domain.ErrNotFound):
		writeErrorWithCode(w, http.StatusNotFound, err.Error(), errCodeNotFound)
	case errors.As(err, &upErr):
		writeErrorWithCode(w, http.StatusBadGateway, err.Error(), errCodeUpstream)
	default:
		writeErrorWithCode(w, http.StatusInternalServerError, "internal error", errCodeInternal)
	}
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && mediaType == "application/json"
}
