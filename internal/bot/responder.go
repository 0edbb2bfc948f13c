package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// FallbackReply is returned whenever the model fails. The chat endpoint
// always answers; upstream failures must not surface as HTTP errors.
const FallbackReply = "Desculpe, ocorreu um erro ao processar sua pergunta histórica."

// titleTranscriptLimit caps how many trailing messages feed the
// title-suggestion prompt.
const titleTranscriptLimit = 10

// TextGenerator is the model dependency of the Responder. Generator
// implements it; tests substitute a stub.
type TextGenerator interface {
	Generate(ctx context.Context, instruction string, history []store.Message, message string) (string, error)
	Title(ctx context.Context, transcript string) (string, error)
}

// Responder routes a message to the right answer source: time intent,
// weather intent, or the model.
type Responder struct {
	gen     TextGenerator
	weather *WeatherClient
	clock   *Clock
	store   store.Storage
	logger  log.Logger
}

// NewResponder wires the responder dependencies.
func NewResponder(gen TextGenerator, weather *WeatherClient, clock *Clock, st store.Storage, logger log.Logger) *Responder {
	return &Responder{
		gen:     gen,
		weather: weather,
		clock:   clock,
		store:   st,
		logger:  logger,
	}
}

// Reply produces the assistant answer for message. It never fails: model
// errors degrade to FallbackReply.
func (r *Responder) Reply(ctx context.Context, userID, message string, history []store.Message) string {
	if timeIntent(message) {
		return r.clock.Report(ctx)
	}

	if location, ok := weatherIntent(message); ok {
		return r.weather.Report(ctx, location)
	}

	instruction := r.instruction(ctx, userID)
	text, err := r.gen.Generate(ctx, instruction, history, message)
	if err != nil {
		r.logger.Error("generating reply", "error", err)
		return FallbackReply
	}
	return text
}

// instruction resolves the system instruction: per-user override first,
// then the admin-configured global one, then the built-in persona.
func (r *Responder) instruction(ctx context.Context, userID string) string {
	if userID != "" {
		u, err := r.store.User(ctx, userID)
		switch {
		case err == nil && u.SystemInstruction != "":
			return u.SystemInstruction
		case err != nil && !errors.Is(err, store.ErrNotFound):
			r.logger.Warn("loading user instruction", "userId", userID, "error", err)
		}
	}

	s, err := r.store.Setting(ctx, store.SystemInstructionKey)
	if err == nil {
		if v, ok := s.Valor.(string); ok && v != "" {
			return v
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		r.logger.Warn("loading global instruction", "error", err)
	}

	return DefaultInstruction
}

// SuggestTitle asks the model for a short title describing the session.
func (r *Responder) SuggestTitle(ctx context.Context, sess *store.ChatSession) (string, error) {
	msgs := sess.Messages
	if len(msgs) > titleTranscriptLimit {
		msgs = msgs[len(msgs)-titleTranscriptLimit:]
	}

	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	title, err := r.gen.Title(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("suggesting title: %w", err)
	}
	return title, nil
}
