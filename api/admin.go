package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// adminSecretHeader carries the shared admin secret.
const adminSecretHeader = "x-admin-secret"

// AdminHandler handles the secret-guarded admin endpoints.
type AdminHandler struct {
	store  store.Storage
	secret string
	logger log.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(st store.Storage, secret string, logger log.Logger) *AdminHandler {
	return &AdminHandler{store: st, secret: secret, logger: logger}
}

// RegisterRoutes registers admin routes on the given mux.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/stats", h.withAuth(h.stats))
	mux.HandleFunc("GET /api/admin/dashboard", h.withAuth(h.dashboard))
	mux.HandleFunc("GET /api/admin/system-instruction", h.withAuth(h.getInstruction))
	mux.HandleFunc("POST /api/admin/system-instruction", h.withAuth(h.putInstruction))
}

// withAuth enforces the shared-secret header. With no secret configured
// every request is rejected; there is no open mode.
func (h *AdminHandler) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(adminSecretHeader)
		if got == "" {
			writeError(w, http.StatusUnauthorized, "Não autorizado", "Cabeçalho x-admin-secret ausente.")
			return
		}
		if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			writeError(w, http.StatusForbidden, "Acesso negado", "")
			return
		}
		next(w, r)
	}
}

// stats returns the lightweight statistics view. When the database is
// unreachable the payload is zeroed with mongoConnected=false instead of
// failing, so the admin page still renders.
func (h *AdminHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if errors.Is(err, store.ErrUnavailable) {
		writeJSON(w, http.StatusOK, store.Stats{UltimasConversas: []store.SessionSummary{}})
		return
	}
	if err != nil {
		h.logger.Error("computing stats", "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao calcular estatísticas", "")
		return
	}

	stats.MongoConnected = h.store.Connected(r.Context())
	writeJSON(w, http.StatusOK, stats)
}

// dashboard returns the full aggregation payload, zeroed when the
// database is unreachable.
func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.Dashboard(r.Context())
	if errors.Is(err, store.ErrUnavailable) {
		writeJSON(w, http.StatusOK, store.Dashboard{
			Stats: store.Stats{UltimasConversas: []store.SessionSummary{}},
		})
		return
	}
	if err != nil {
		h.logger.Error("computing dashboard", "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao calcular o dashboard", "")
		return
	}

	d.MongoConnected = h.store.Connected(r.Context())
	writeJSON(w, http.StatusOK, d)
}

// getInstruction returns the global system instruction, empty when none
// was ever configured.
func (h *AdminHandler) getInstruction(w http.ResponseWriter, r *http.Request) {
	instruction := ""
	s, err := h.store.Setting(r.Context(), store.SystemInstructionKey)
	switch {
	case err == nil:
		if v, ok := s.Valor.(string); ok {
			instruction = v
		}
	case errors.Is(err, store.ErrNotFound):
		// No global instruction configured yet.
	default:
		h.logger.Error("loading system instruction", "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao carregar a instrução", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"instruction": instruction})
}

// InstructionRequest is the body for updating the global instruction.
type InstructionRequest struct {
	Instruction string `json:"instruction"`
}

// putInstruction stores the global system instruction.
func (h *AdminHandler) putInstruction(w http.ResponseWriter, r *http.Request) {
	var req InstructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido", "Envie um JSON com 'instruction'.")
		return
	}

	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		writeError(w, http.StatusBadRequest, "Instrução não fornecida", "O campo 'instruction' é obrigatório.")
		return
	}
	if len(instruction) > MaxInstructionLength {
		writeError(w, http.StatusBadRequest, "Instrução muito longa", "O limite é de 10000 caracteres.")
		return
	}

	if err := h.store.PutSetting(r.Context(), store.SystemInstructionKey, instruction); err != nil {
		h.logger.Error("saving system instruction", "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao salvar a instrução", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"instruction": instruction})
}
