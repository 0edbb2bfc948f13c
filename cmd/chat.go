package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MariDenig/chatBot-hist/internal/bot"
	"github.com/MariDenig/chatBot-hist/internal/config"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

// executeChat runs the interactive historian in the terminal. It talks to
// the model directly; no server or database involved.
func executeChat() error {
	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()
	gen, err := bot.NewGenerator(ctx, cfg, logger.With("component", "generator"))
	if err != nil {
		return fmt.Errorf("failed to set up the model client: %w", err)
	}

	fmt.Println("Bem-vindo ao Chatbot Historiador!")
	fmt.Println("Faça sua pergunta ou digite 'sair' para encerrar.")
	fmt.Println()

	var history []store.Message
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("Você: ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "sair") {
			fmt.Println("Até a próxima!")
			break
		}

		answer, err := gen.Generate(ctx, bot.DefaultInstruction, history, question)
		if err != nil {
			logger.Error("generating reply", "error", err)
			answer = bot.FallbackReply
		}

		fmt.Printf("\nHistoriador: %s\n\n", answer)

		now := time.Now()
		history = append(history,
			store.Message{Role: "user", Content: question, Timestamp: now},
			store.Message{Role: "assistant", Content: answer, Timestamp: now},
		)
	}

	return scanner.Err()
}
