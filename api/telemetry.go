package api

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// TelemetryHandler handles the connection-log and bot-ranking endpoints.
// Everything here is best effort: the frontend fires these calls on page
// load and never checks the outcome.
type TelemetryHandler struct {
	store  store.Storage
	logger log.Logger
}

// NewTelemetryHandler creates a new telemetry handler.
func NewTelemetryHandler(st store.Storage, logger log.Logger) *TelemetryHandler {
	return &TelemetryHandler{store: st, logger: logger}
}

// RegisterRoutes registers telemetry routes on the given mux.
func (h *TelemetryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/log-connection", h.logConnection)
	mux.HandleFunc("POST /api/ranking/registrar-acesso-bot", h.recordAccess)
	mux.HandleFunc("GET /api/ranking/visualizar", h.ranking)
}

// ConnectionLogRequest is the body of the log-connection endpoint.
type ConnectionLogRequest struct {
	IP      string `json:"ip"`
	Acao    string `json:"acao"`
	NomeBot string `json:"nomeBot"`
}

// logConnection stores a connection event. Failures are logged and the
// request still succeeds.
func (h *TelemetryHandler) logConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectionLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido", "")
		return
	}

	ip := req.IP
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}

	err := h.store.LogConnection(r.Context(), store.ConnectionLog{
		IP:        ip,
		Acao:      req.Acao,
		NomeBot:   req.NomeBot,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Warn("logging connection", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AccessRequest is the body of the bot-access endpoint. The frontend
// sends its own timestamp; the server clock is used when it is absent.
type AccessRequest struct {
	BotID           string    `json:"botId"`
	NomeBot         string    `json:"nomeBot"`
	TimestampAcesso time.Time `json:"timestampAcesso"`
}

// recordAccess increments the access counter for a bot.
func (h *TelemetryHandler) recordAccess(w http.ResponseWriter, r *http.Request) {
	var req AccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido", "")
		return
	}
	if req.BotID == "" {
		writeError(w, http.StatusBadRequest, "Bot não informado", "O campo 'botId' é obrigatório.")
		return
	}

	at := req.TimestampAcesso
	if at.IsZero() {
		at = time.Now()
	}

	total, err := h.store.RecordBotAccess(r.Context(), req.BotID, req.NomeBot, at)
	if err != nil {
		h.logger.Warn("recording bot access", "botId", req.BotID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"botId":   req.BotID,
		"acessos": total,
	})
}

// ranking returns the access counters, most accessed first.
func (h *TelemetryHandler) ranking(w http.ResponseWriter, r *http.Request) {
	ranking, err := h.store.BotRanking(r.Context())
	if err != nil {
		h.logger.Warn("loading bot ranking", "error", err)
		writeJSON(w, http.StatusOK, []store.BotAccess{})
		return
	}
	if ranking == nil {
		ranking = []store.BotAccess{}
	}
	writeJSON(w, http.StatusOK, ranking)
}
