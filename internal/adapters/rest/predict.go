package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/logging"
)

const maxPredictBody = 1 << 20

// featureValue accepts a JSON number or a numeric string.
type featureValue float64

func (f *featureValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("feature value %q is not a number", s)
		}
		*f = featureValue(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("feature value %s is not a number", b)
	}
	*f = featureValue(v)
	return nil
}

type predictRequest struct {
	TrackID  string                  `json:"track_id"`
	Features map[string]featureValue `json:"features"`
}

// Predict handles POST /predict
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req predictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPredictBody)).Decode(&req); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), errCodeValidation)
		return
	}

	var missing []string
	if strings.TrimSpace(req.TrackID) == "" {
		missing = append(missing, "track_id")
	}
	if req.Features == nil {
		missing = append(missing, "features")
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Missing track_id or features",
			Code:    errCodeValidation,
			Missing: missing,
		})
		return
	}

	features := make(domain.FeatureSet, len(req.Features))
	for k, v := range req.Features {
		features[k] = float64(v)
	}

	result, err := h.svc.Predict(r.Context(), req.TrackID, features)
	if err != nil {
		h.logger.Error(err, "predict failed", logging.Fields{"track_id": req.TrackID, "stage": "predict"})
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
