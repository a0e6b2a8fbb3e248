package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ewilliams-labs/cadence/internal/adapters/wav"
	"github.com/ewilliams-labs/cadence/internal/logging"
)

const reconstructedFilename = "reconstructed_audio.wav"

// ReconstructAudio handles GET /audio/{id}
func (h *Handler) ReconstructAudio(w http.ResponseWriter, r *http.Request) {
	trackID := r.PathValue("id")

	wave, err := h.svc.Reconstruct(r.Context(), trackID)
	if err != nil {
		h.logger.Error(err, "reconstruct failed", logging.Fields{"track_id": trackID, "stage": "reconstruct"})
		writeDomainError(w, err)
		return
	}

	body, err := wav.Encode(wave)
	if err != nil {
		h.logger.Error(err, "wav encode failed", logging.Fields{"track_id": trackID, "stage": "encode"})
		writeErrorWithCode(w, http.StatusInternalServerError, "internal error", errCodeInternal)
		return
	}

	w.Header().Set("Content-Type", wav.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(wav.AttachmentFmt, reconstructedFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
