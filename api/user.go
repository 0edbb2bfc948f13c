package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// userIDHeader carries the frontend user identity.
const userIDHeader = "x-user-id"

// MaxInstructionLength bounds a per-user system instruction.
const MaxInstructionLength = 10000

// UserHandler handles login and per-user preference endpoints.
type UserHandler struct {
	store  store.Storage
	logger log.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(st store.Storage, logger log.Logger) *UserHandler {
	return &UserHandler{store: st, logger: logger}
}

// RegisterRoutes registers user routes on the given mux.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/simple-login", h.login)
	mux.HandleFunc("GET /api/user/preferences", h.getPreferences)
	mux.HandleFunc("PUT /api/user/preferences", h.putPreferences)
}

// LoginRequest is the body of the simple-login endpoint. There is no
// password; this identifies, it does not authenticate.
type LoginRequest struct {
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

// login upserts a user keyed by a deterministic hash of the email, so
// repeat logins land on the same record.
func (h *UserHandler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido", "Envie um JSON com 'nome' e 'email'.")
		return
	}

	nome := strings.TrimSpace(req.Nome)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if nome == "" || email == "" {
		writeError(w, http.StatusBadRequest, "Dados incompletos", "Os campos 'nome' e 'email' são obrigatórios.")
		return
	}

	sum := sha256.Sum256([]byte(email))
	userID := "user-" + hex.EncodeToString(sum[:8])

	u, err := h.store.SaveUser(r.Context(), store.User{
		UserID: userID,
		Nome:   nome,
		Email:  email,
	})
	if err != nil {
		h.logger.Error("saving user", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao salvar usuário", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"userId": u.UserID,
		"nome":   u.Nome,
		"email":  u.Email,
	})
}

// requireUser extracts the user identity header.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Não autorizado", "Cabeçalho x-user-id ausente.")
		return "", false
	}
	return userID, true
}

// PreferencesResponse is the per-user preferences payload.
type PreferencesResponse struct {
	SystemInstruction string `json:"systemInstruction"`
	Nome              string `json:"nome,omitempty"`
	Email             string `json:"email,omitempty"`
	ApelidoBot        string `json:"apelidoBot,omitempty"`
}

// getPreferences returns the stored preferences. Unknown users get the
// empty default rather than 404; the frontend treats both the same.
func (h *UserHandler) getPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	u, err := h.store.User(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, PreferencesResponse{})
		return
	}
	if err != nil {
		h.logger.Error("loading preferences", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao carregar preferências", "")
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{
		SystemInstruction: u.SystemInstruction,
		Nome:              u.Nome,
		Email:             u.Email,
		ApelidoBot:        u.ApelidoBot,
	})
}

// PutPreferencesRequest is the body for updating preferences. An empty
// systemInstruction clears the override.
type PutPreferencesRequest struct {
	SystemInstruction string `json:"systemInstruction"`
}

// putPreferences stores the per-user system instruction.
func (h *UserHandler) putPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req PutPreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido", "Envie um JSON com 'systemInstruction'.")
		return
	}
	if len(req.SystemInstruction) > MaxInstructionLength {
		writeError(w, http.StatusBadRequest, "Instrução muito longa", "O limite é de 10000 caracteres.")
		return
	}

	u, err := h.store.SetUserInstruction(r.Context(), userID, strings.TrimSpace(req.SystemInstruction))
	if err != nil {
		h.logger.Error("saving preferences", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao salvar preferências", "")
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{SystemInstruction: u.SystemInstruction})
}
