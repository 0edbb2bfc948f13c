package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

func newTelemetryMux(st store.Storage) *http.ServeMux {
	mux := http.NewServeMux()
	NewTelemetryHandler(st, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestLogConnection(t *testing.T) {
	t.Parallel()

	mux := newTelemetryMux(store.NewMemory())
	req := httptest.NewRequest(http.MethodPost, "/api/log-connection",
		strings.NewReader(`{"acao": "abriu o chat", "nomeBot": "Chatbot Historiador"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBotRanking(t *testing.T) {
	t.Parallel()

	mux := newTelemetryMux(store.NewMemory())

	record := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/ranking/registrar-acesso-bot",
			strings.NewReader(`{"botId": "chatbotHistoriador", "nomeBot": "Chatbot Historiador"}`))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, record().Code)
	w := record()
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 2, resp["acessos"])

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ranking/visualizar", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var ranking []store.BotAccess
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ranking))
	require.Len(t, ranking, 1)
	assert.Equal(t, int64(2), ranking[0].Acessos)

	t.Run("missing botId", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/api/ranking/registrar-acesso-bot",
			strings.NewReader(`{"nomeBot": "x"}`))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
