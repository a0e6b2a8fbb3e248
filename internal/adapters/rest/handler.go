// Package rest is the HTTP driving adapter.
package rest

import (
	"net/http"
	"slices"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/logging"
)

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc            *services.Orchestrator // Dependency on the Core Service
	router         *http.ServeMux         // Standard library router
	allowedOrigins []string
	logger         logging.Logger
}

// NewHandler initializes the HTTP adapter and sets up routes. allowedOrigins
// lists the origins that may call the API from a browser; "*" allows any.
func NewHandler(svc *services.Orchestrator, allowedOrigins []string) *Handler {
	h := &Handler{
		svc:            svc,
		router:         http.NewServeMux(),
		allowedOrigins: allowedOrigins,
		logger:         logging.WithFields(logging.Fields{"component": "rest"}),
	}

	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.applyCORS(w, r) {
		return
	}
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.router.ServeHTTP(rec, r)
	h.logger.Debug("request served", logging.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      rec.status,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)

	h.router.HandleFunc("POST /predict", h.Predict)
	h.router.HandleFunc("GET /audio/{id}", h.ReconstructAudio)

	h.router.HandleFunc("GET /search", h.Search)
	h.router.HandleFunc("GET /features/{id}", h.AudioFeatures)
	h.router.HandleFunc("GET /history/{id}", h.History)
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// applyCORS sets CORS headers for allowed origins and answers preflight
// requests. It reports whether the request has been fully handled.
func (h *Handler) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin != "" && h.originAllowed(origin) {
		hdr := w.Header()
		if slices.Contains(h.allowedOrigins, "*") {
			hdr.Set("Access-Control-Allow-Origin", "*")
		} else {
			hdr.Set("Access-Control-Allow-Origin", origin)
			hdr.Add("Vary", "Origin")
		}
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "Content-Type")
		hdr.Set("Access-Control-Expose-Headers", "Content-Disposition")
	}

	if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func (h *Handler) originAllowed(origin string) bool {
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
