package api

import (
	"net/http"
	"time"

	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// StatusHandler handles the status and liveness endpoints.
type StatusHandler struct {
	store             store.Storage
	geminiConfigured  bool
	weatherConfigured bool
	logger            log.Logger
}

// NewStatusHandler creates a new status handler. The configured flags
// let the frontend warn about missing API keys without exposing them.
func NewStatusHandler(st store.Storage, geminiConfigured, weatherConfigured bool, logger log.Logger) *StatusHandler {
	return &StatusHandler{
		store:             st,
		geminiConfigured:  geminiConfigured,
		weatherConfigured: weatherConfigured,
		logger:            logger,
	}
}

// RegisterRoutes registers status routes on the given mux.
func (h *StatusHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /status", h.status)
	mux.HandleFunc("GET /health", h.liveness)
}

// status reports the service state, including database reachability.
// The frontend polls it to decide whether history features are usable.
func (h *StatusHandler) status(w http.ResponseWriter, r *http.Request) {
	mongodb := "disconnected"
	if h.store.Connected(r.Context()) {
		mongodb = "connected"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "online",
		"mongodb":              mongodb,
		"geminiApiConfigured":  h.geminiConfigured,
		"weatherApiConfigured": h.weatherConfigured,
		"timestamp":            time.Now().Format(time.RFC3339),
	})
}

// liveness is a liveness probe endpoint.
// Returns 200 OK if the process is alive.
func (h *StatusHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
