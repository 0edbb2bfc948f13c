// Package bot produces the chatbot replies.
//
// The Responder routes each message: time and weather intents are served
// from third-party APIs, everything else goes to Gemini with a historian
// system instruction. Upstream failures degrade to a canned reply; the
// chat endpoint never breaks because the model is down.
package bot

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/MariDenig/chatBot-hist/internal/config"
	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// DefaultInstruction is the historian persona used when neither the user
// nor an admin configured one.
const DefaultInstruction = "Você é um chatbot historiador. Responda às perguntas dos usuários de forma " +
	"informativa, precisa e envolvente, sempre com uma perspectiva histórica. Cite fontes ou períodos " +
	"relevantes quando apropriado. Aja como um especialista apaixonado por história."

// requestsPerSecond bounds outbound Gemini calls. The free tier allows
// bursts but sustained traffic gets throttled quickly.
const requestsPerSecond = 2

// Generator wraps the Gemini client with rate limiting and retry.
type Generator struct {
	client  *genai.Client
	model   string
	temp    float32
	retry   RetryConfig
	limiter *rate.Limiter
	logger  log.Logger
}

// NewGenerator creates a Generator from the application configuration.
func NewGenerator(ctx context.Context, cfg *config.Config, logger log.Logger) (*Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &Generator{
		client:  client,
		model:   cfg.ModelName,
		temp:    cfg.Temperature,
		retry:   DefaultRetryConfig(),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		logger:  logger,
	}, nil
}

// Generate answers message with the given system instruction, feeding the
// prior conversation back to the model as alternating user/model turns.
func (g *Generator) Generate(ctx context.Context, instruction string, history []store.Message, message string) (string, error) {
	contents := buildContents(history, message)

	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(g.temp),
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	}

	resp, err := g.generateWithRetry(ctx, contents, cfg)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned an empty response")
	}
	return text, nil
}

// Title asks the model to summarize a transcript into a short title.
func (g *Generator) Title(ctx context.Context, transcript string) (string, error) {
	prompt := "Resuma a conversa a seguir em um título curto de no máximo 5 palavras, " +
		"sem aspas e sem pontuação final:\n\n" + transcript

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.3),
	}

	resp, err := g.generateWithRetry(ctx, contents, cfg)
	if err != nil {
		return "", err
	}
	return sanitizeTitle(resp.Text()), nil
}

// buildContents maps the stored transcript onto model turns. Stored
// "assistant" messages become model turns, everything else a user turn,
// with the new message appended last.
func buildContents(history []store.Message, message string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return append(contents, genai.NewContentFromText(message, genai.RoleUser))
}

// sanitizeTitle strips quoting and newlines from a model-suggested title
// and truncates it to five words.
func sanitizeTitle(s string) string {
	s = strings.NewReplacer("\"", "", "'", "", "`", "", "\n", " ", "\r", " ").Replace(s)
	words := strings.Fields(s)
	if len(words) > 5 {
		words = words[:5]
	}
	title := strings.Join(words, " ")
	if title == "" {
		return store.DefaultTitle
	}
	return title
}
