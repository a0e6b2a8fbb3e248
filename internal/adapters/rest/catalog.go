package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/logging"
)

const defaultHistoryLimit = 10

type searchResponse struct {
	Tracks []domain.Track `json:"tracks"`
}

type historyEntry struct {
	RequestID        string    `json:"request_id"`
	Vector           []float64 `json:"vector"`
	PreviewAvailable bool      `json:"preview_available"`
	Fallback         bool      `json:"fallback"`
	Label            int       `json:"label"`
	CreatedAt        time.Time `json:"created_at"`
}

type historyResponse struct {
	TrackID string         `json:"track_id"`
	Entries []historyEntry `json:"entries"`
}

// Search handles GET /search?q=
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	tracks, err := h.svc.Search(r.Context(), query)
	if err != nil {
		h.logger.Error(err, "search failed", logging.Fields{"query": query, "stage": "search"})
		writeCatalogError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Tracks: tracks})
}

// AudioFeatures handles GET /features/{id}
func (h *Handler) AudioFeatures(w http.ResponseWriter, r *http.Request) {
	trackID := r.PathValue("id")

	fs, err := h.svc.AudioFeatures(r.Context(), trackID)
	if err != nil {
		h.logger.Error(err, "audio features failed", logging.Fields{"track_id": trackID, "stage": "features"})
		writeCatalogError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fs)
}

// History handles GET /history/{id}?limit=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	trackID := r.PathValue("id")
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErrorWithCode(w, http.StatusBadRequest, "limit must be a positive integer", errCodeValidation)
			return
		}
		limit = n
	}

	entries, err := h.svc.History(r.Context(), trackID, limit)
	if err != nil {
		h.logger.Error(err, "history failed", logging.Fields{"track_id": trackID, "stage": "history"})
		writeDomainError(w, err)
		return
	}

	resp := historyResponse{TrackID: trackID, Entries: make([]historyEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, historyEntry{
			RequestID:        e.RequestID,
			Vector:           e.Vector,
			PreviewAvailable: e.PreviewAvailable,
			Fallback:         e.Fallback,
			Label:            e.Label,
			CreatedAt:        e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeCatalogError treats unclassified catalog failures as upstream errors.
func writeCatalogError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) || errors.Is(err, domain.ErrNotFound) {
		writeDomainError(w, err)
		return
	}
	writeErrorWithCode(w, http.StatusBadGateway, "catalog request failed", errCodeUpstream)
}
