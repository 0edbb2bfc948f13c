package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// unavailableStore simulates a down database for the operations the
// history and chat endpoints touch.
type unavailableStore struct {
	store.Storage
}

func (u *unavailableStore) AppendMessages(context.Context, string, string, []store.Message) (*store.ChatSession, error) {
	return nil, store.ErrUnavailable
}

func (u *unavailableStore) ListSessions(context.Context) ([]store.ChatSession, error) {
	return nil, store.ErrUnavailable
}

func (u *unavailableStore) Stats(context.Context) (*store.Stats, error) {
	return nil, store.ErrUnavailable
}

func (u *unavailableStore) Dashboard(context.Context) (*store.Dashboard, error) {
	return nil, store.ErrUnavailable
}

func (u *unavailableStore) Connected(context.Context) bool { return false }

// newHistoryMux registers the history routes so path parameters resolve.
func newHistoryMux(st store.Storage, replier Replier) *http.ServeMux {
	mux := http.NewServeMux()
	NewHistoryHandler(st, replier, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func seedSession(t *testing.T, mem *store.Memory, sessionID string, msgs ...store.Message) *store.ChatSession {
	t.Helper()

	if len(msgs) == 0 {
		msgs = []store.Message{
			{Role: "user", Content: "Quem foi Tiradentes?", Timestamp: time.Now()},
			{Role: "assistant", Content: "Mártir da Inconfidência Mineira, executado em 1792.", Timestamp: time.Now()},
		}
	}
	sess, err := mem.AppendMessages(context.Background(), sessionID, DefaultBotID, msgs)
	require.NoError(t, err)
	return sess
}

func TestHistoryList(t *testing.T) {
	t.Parallel()

	t.Run("empty list", func(t *testing.T) {
		t.Parallel()

		mux := newHistoryMux(store.NewMemory(), &stubReplier{})
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/historicos", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("returns saved sessions", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemory()
		seedSession(t, mem, "s1")

		mux := newHistoryMux(mem, &stubReplier{})
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/historicos", nil))

		require.Equal(t, http.StatusOK, w.Code)

		var sessions []store.ChatSession
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
		require.Len(t, sessions, 1)
		assert.Equal(t, "s1", sessions[0].SessionID)
		assert.Len(t, sessions[0].Messages, 2)
	})

	t.Run("database down answers 503", func(t *testing.T) {
		t.Parallel()

		mux := newHistoryMux(&unavailableStore{}, &stubReplier{})
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/historicos", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHistoryRename(t *testing.T) {
	t.Parallel()

	t.Run("rename then list shows the new title", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemory()
		sess := seedSession(t, mem, "s1")
		mux := newHistoryMux(mem, &stubReplier{})

		req := httptest.NewRequest(http.MethodPut, "/api/chat/historicos/"+sess.ID.Hex(),
			strings.NewReader(`{"titulo": "Inconfidência Mineira"}`))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/historicos", nil))

		var sessions []store.ChatSession
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
		require.Len(t, sessions, 1)
		assert.Equal(t, "Inconfidência Mineira", sessions[0].Titulo)
	})

	t.Run("rename by session id", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemory()
		seedSession(t, mem, "s1")
		mux := newHistoryMux(mem, &stubReplier{})

		req := httptest.NewRequest(http.MethodPut, "/api/chat/historicos/session/s1",
			strings.NewReader(`{"titulo": "Outro"}`))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var sess store.ChatSession
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
		assert.Equal(t, "Outro", sess.Titulo)
	})

	t.Run("missing title", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemory()
		sess := seedSession(t, mem, "s1")
		mux := newHistoryMux(mem, &stubReplier{})

		req := httptest.NewRequest(http.MethodPut, "/api/chat/historicos/"+sess.ID.Hex(),
			strings.NewReader(`{"titulo": "  "}`))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		mux := newHistoryMux(store.NewMemory(), &stubReplier{})
		req := httptest.NewRequest(http.MethodPut, "/api/chat/historicos/ffffffffffffffffffffffff",
			strings.NewReader(`{"titulo": "x"}`))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHistoryDelete(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	sess := seedSession(t, mem, "s1")
	mux := newHistoryMux(mem, &stubReplier{})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/chat/historicos/"+sess.ID.Hex(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/chat/historicos/"+sess.ID.Hex(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistorySuggestTitle(t *testing.T) {
	t.Parallel()

	t.Run("stores and returns the suggestion", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemory()
		sess := seedSession(t, mem, "s1")
		mux := newHistoryMux(mem, &stubReplier{title: "Inconfidência Mineira"})

		req := httptest.NewRequest(http.MethodPost, "/api/chat/historicos/"+sess.ID.Hex()+"/gerar-titulo", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Inconfidência Mineira", resp["tituloSugerido"])

		got, err := mem.Session(context.Background(), sess.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, "Inconfidência Mineira", got.Titulo)
	})

	t.Run("empty conversation", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemory()
		sess, err := mem.AppendMessages(context.Background(), "s1", DefaultBotID, nil)
		require.NoError(t, err)

		mux := newHistoryMux(mem, &stubReplier{title: "x"})
		req := httptest.NewRequest(http.MethodPost, "/api/chat/historicos/"+sess.ID.Hex()+"/gerar-titulo", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
