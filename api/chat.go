package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// DefaultBotID identifies this bot in shared collections.
const DefaultBotID = "chatbotHistoriador"

// MaxMessageLength bounds one chat message.
const MaxMessageLength = 8000

// Replier is the response-generation dependency of the chat endpoints.
// bot.Responder implements it; tests substitute a stub.
type Replier interface {
	Reply(ctx context.Context, userID, message string, history []store.Message) string
	SuggestTitle(ctx context.Context, sess *store.ChatSession) (string, error)
}

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	replier Replier
	store   store.Storage
	logger  log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(replier Replier, st store.Storage, logger log.Logger) *ChatHandler {
	return &ChatHandler{replier: replier, store: st, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.chat)
}

// ChatRequest is the request body of POST /chat. History carries the
// client-side view of the conversation so far.
type ChatRequest struct {
	Message   string          `json:"message"`
	History   []store.Message `json:"history"`
	SessionID string          `json:"sessionId"`
	UserID    string          `json:"userId"`
	BotID     string          `json:"botId"`
}

// ChatResponse is the response body of POST /chat. History is the
// request history plus the new user/assistant pair.
type ChatResponse struct {
	Response  string          `json:"response"`
	History   []store.Message `json:"history"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
}

// chat produces the assistant reply and persists both turns. Transcript
// persistence is best effort: a storage failure is logged but the user
// still gets their answer.
func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido", "Envie um JSON com o campo 'message'.")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "Mensagem não fornecida", "O campo 'message' é obrigatório.")
		return
	}
	if len(message) > MaxMessageLength {
		writeError(w, http.StatusBadRequest, "Mensagem muito longa", "O limite é de 8000 caracteres.")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	botID := req.BotID
	if botID == "" {
		botID = DefaultBotID
	}

	reply := h.replier.Reply(r.Context(), req.UserID, message, req.History)

	now := time.Now()
	turns := []store.Message{
		{Role: "user", Content: message, Timestamp: now},
		{Role: "assistant", Content: reply, Timestamp: now},
	}

	if _, err := h.store.AppendMessages(r.Context(), sessionID, botID, turns); err != nil {
		h.logger.Error("persisting transcript", "sessionId", sessionID, "error", err)
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:  reply,
		History:   append(req.History, turns...),
		SessionID: sessionID,
		Timestamp: now,
	})
}
