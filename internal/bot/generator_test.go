package bot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/MariDenig/chatBot-hist/internal/store"
)

func TestBuildContents(t *testing.T) {
	t.Parallel()

	t.Run("maps roles onto model turns", func(t *testing.T) {
		t.Parallel()

		history := []store.Message{
			{Role: "user", Content: "Quem foi Zumbi dos Palmares?"},
			{Role: "assistant", Content: "Líder do Quilombo dos Palmares."},
		}

		contents := buildContents(history, "E quando ele morreu?")
		require.Len(t, contents, 3)

		assert.Equal(t, genai.RoleUser, contents[0].Role)
		assert.Equal(t, "Quem foi Zumbi dos Palmares?", contents[0].Parts[0].Text)
		assert.Equal(t, genai.RoleModel, contents[1].Role)
		assert.Equal(t, genai.RoleUser, contents[2].Role)
		assert.Equal(t, "E quando ele morreu?", contents[2].Parts[0].Text)
	})

	t.Run("no history", func(t *testing.T) {
		t.Parallel()

		contents := buildContents(nil, "Olá")
		require.Len(t, contents, 1)
		assert.Equal(t, genai.RoleUser, contents[0].Role)
	})
}

func TestSanitizeTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain title", "Reinado de Dom Pedro II", "Reinado de Dom Pedro II"},
		{"strips quotes", `"Revolução Francesa"`, "Revolução Francesa"},
		{"strips newlines", "Primeira\nGuerra Mundial", "Primeira Guerra Mundial"},
		{"truncates to five words", "uma conversa muito longa sobre a história do Brasil", "uma conversa muito longa sobre"},
		{"empty falls back to the default", "  ", store.DefaultTitle},
		{"only quotes falls back", `""`, store.DefaultTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sanitizeTitle(tt.in))
		})
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("googleapi: Error 429: rate limit"), true},
		{"quota", errors.New("quota exceeded for model"), true},
		{"service unavailable", errors.New("503 Service Unavailable"), true},
		{"timeout", errors.New("net/http: request timeout"), true},
		{"bad request", errors.New("400 invalid argument"), false},
		{"auth", errors.New("401 API key not valid"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, retryableError(tt.err))
		})
	}
}
