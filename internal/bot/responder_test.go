package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// stubGenerator records the instruction it was called with and returns a
// fixed reply or error.
type stubGenerator struct {
	reply       string
	err         error
	instruction string
}

func (s *stubGenerator) Generate(_ context.Context, instruction string, _ []store.Message, _ string) (string, error) {
	s.instruction = instruction
	return s.reply, s.err
}

func (s *stubGenerator) Title(context.Context, string) (string, error) {
	return s.reply, s.err
}

func newTestResponder(gen TextGenerator, st store.Storage) *Responder {
	logger := log.NewNop()
	clock := NewClock("America/Sao_Paulo", logger)
	clock.baseURL = "http://127.0.0.1:1/" // unreachable, forces the local-clock fallback
	return NewResponder(gen, NewWeatherClient("", logger), clock, st, logger)
}

func TestResponderReply(t *testing.T) {
	t.Parallel()

	t.Run("forwards to the model", func(t *testing.T) {
		t.Parallel()

		gen := &stubGenerator{reply: "Dom Pedro II reinou de 1831 a 1889."}
		r := newTestResponder(gen, store.NewMemory())

		reply := r.Reply(context.Background(), "", "Quem foi Dom Pedro II?", nil)
		assert.Equal(t, "Dom Pedro II reinou de 1831 a 1889.", reply)
		assert.Equal(t, DefaultInstruction, gen.instruction)
	})

	t.Run("model failure degrades to the fallback reply", func(t *testing.T) {
		t.Parallel()

		gen := &stubGenerator{err: errors.New("429 quota exceeded")}
		r := newTestResponder(gen, store.NewMemory())

		reply := r.Reply(context.Background(), "", "Quem foi Napoleão?", nil)
		assert.Equal(t, FallbackReply, reply)
	})

	t.Run("time intent bypasses the model", func(t *testing.T) {
		t.Parallel()

		gen := &stubGenerator{err: errors.New("must not be called")}
		r := newTestResponder(gen, store.NewMemory())

		reply := r.Reply(context.Background(), "", "Que horas são?", nil)
		assert.Contains(t, reply, "A hora atual é:")
	})

	t.Run("weather intent bypasses the model", func(t *testing.T) {
		t.Parallel()

		gen := &stubGenerator{err: errors.New("must not be called")}
		r := newTestResponder(gen, store.NewMemory())

		// No weather key configured in tests, so the canned reply answers.
		reply := r.Reply(context.Background(), "", "Como está o tempo em Curitiba?", nil)
		assert.Equal(t, weatherNotConfigured, reply)
	})
}

func TestResponderInstruction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("global setting overrides the default", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemory()
		require.NoError(t, mem.PutSetting(ctx, store.SystemInstructionKey, "Seja conciso."))

		gen := &stubGenerator{reply: "ok"}
		r := newTestResponder(gen, mem)

		r.Reply(ctx, "", "Pergunta qualquer", nil)
		assert.Equal(t, "Seja conciso.", gen.instruction)
	})

	t.Run("per-user instruction wins", func(t *testing.T) {
		t.Parallel()

		mem := store.NewMemory()
		require.NoError(t, mem.PutSetting(ctx, store.SystemInstructionKey, "Seja conciso."))
		_, err := mem.SetUserInstruction(ctx, "user-1", "Responda em francês.")
		require.NoError(t, err)

		gen := &stubGenerator{reply: "ok"}
		r := newTestResponder(gen, mem)

		r.Reply(ctx, "user-1", "Pergunta qualquer", nil)
		assert.Equal(t, "Responda em francês.", gen.instruction)
	})

	t.Run("unknown user falls back to the default", func(t *testing.T) {
		t.Parallel()

		gen := &stubGenerator{reply: "ok"}
		r := newTestResponder(gen, store.NewMemory())

		r.Reply(ctx, "ghost", "Pergunta qualquer", nil)
		assert.Equal(t, DefaultInstruction, gen.instruction)
	})
}

func TestSuggestTitle(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "Reinado de Dom Pedro II"}
	r := newTestResponder(gen, store.NewMemory())

	sess := &store.ChatSession{
		SessionID: "s1",
		Messages: []store.Message{
			{Role: "user", Content: "Quem foi Dom Pedro II?"},
			{Role: "assistant", Content: "O segundo imperador do Brasil."},
		},
	}

	title, err := r.SuggestTitle(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "Reinado de Dom Pedro II", title)
}
