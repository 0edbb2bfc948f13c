package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// MaxTitleLength bounds a conversation title.
const MaxTitleLength = 100

// HistoryHandler handles conversation management endpoints.
//
// These endpoints read the durable store directly: when the database is
// down they answer 503 and the frontend retries with backoff, instead of
// silently showing the partial in-memory view.
type HistoryHandler struct {
	store   store.Storage
	replier Replier
	logger  log.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(st store.Storage, replier Replier, logger log.Logger) *HistoryHandler {
	return &HistoryHandler{store: st, replier: replier, logger: logger}
}

// RegisterRoutes registers history routes on the given mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/chat/historicos", h.list)
	mux.HandleFunc("PUT /api/chat/historicos/{id}", h.rename)
	mux.HandleFunc("PUT /api/chat/historicos/session/{sessionId}", h.renameBySession)
	mux.HandleFunc("DELETE /api/chat/historicos/{id}", h.remove)
	mux.HandleFunc("POST /api/chat/historicos/{id}/gerar-titulo", h.suggestTitle)
}

// storageError translates store sentinels into the HTTP error contract.
func (h *HistoryHandler) storageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Histórico não encontrado", "")
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Banco de dados indisponível",
			"Tente novamente em alguns instantes.")
	default:
		h.logger.Error("history operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor", "")
	}
}

// list returns all saved conversations, most recent first.
func (h *HistoryHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions(r.Context())
	if err != nil {
		h.storageError(w, err)
		return
	}
	if sessions == nil {
		sessions = []store.ChatSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// TitleRequest is the body for the rename endpoints.
type TitleRequest struct {
	Titulo string `json:"titulo"`
}

func parseTitle(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req TitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido", "Envie um JSON com o campo 'titulo'.")
		return "", false
	}
	titulo := strings.TrimSpace(req.Titulo)
	if titulo == "" {
		writeError(w, http.StatusBadRequest, "Título não fornecido", "O campo 'titulo' é obrigatório.")
		return "", false
	}
	if len(titulo) > MaxTitleLength {
		writeError(w, http.StatusBadRequest, "Título muito longo", "O limite é de 100 caracteres.")
		return "", false
	}
	return titulo, true
}

// rename updates the title of a conversation by document ID.
func (h *HistoryHandler) rename(w http.ResponseWriter, r *http.Request) {
	titulo, ok := parseTitle(w, r)
	if !ok {
		return
	}

	sess, err := h.store.SetTitle(r.Context(), r.PathValue("id"), titulo)
	if err != nil {
		h.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// renameBySession updates the title by thread id, the fallback path the
// frontend uses for conversations it never reloaded.
func (h *HistoryHandler) renameBySession(w http.ResponseWriter, r *http.Request) {
	titulo, ok := parseTitle(w, r)
	if !ok {
		return
	}

	sess, err := h.store.SetTitleBySession(r.Context(), r.PathValue("sessionId"), titulo)
	if err != nil {
		h.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// remove deletes a conversation by document ID.
func (h *HistoryHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		h.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// suggestTitle asks the model for a title describing the conversation and
// stores it.
func (h *HistoryHandler) suggestTitle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess, err := h.store.Session(r.Context(), id)
	if err != nil {
		h.storageError(w, err)
		return
	}
	if len(sess.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "Conversa vazia", "Não há mensagens para gerar um título.")
		return
	}

	titulo, err := h.replier.SuggestTitle(r.Context(), sess)
	if err != nil {
		h.logger.Error("suggesting title", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Não foi possível gerar o título", "")
		return
	}

	if _, err := h.store.SetTitle(r.Context(), id, titulo); err != nil {
		h.storageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tituloSugerido": titulo})
}
