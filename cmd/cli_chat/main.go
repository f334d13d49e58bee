package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"chat-relay/internal/config"
	"chat-relay/internal/db"
	"chat-relay/internal/domain"
	"chat-relay/internal/llm"
	"chat-relay/internal/repository"
	"chat-relay/internal/service"
)

// stdoutSink imprime los deltas del turno según llegan a la terminal.
type stdoutSink struct{}

func (stdoutSink) Begin(conversationID string) {
	fmt.Printf("[chat %s]\n", conversationID)
}

func (stdoutSink) WriteDelta(delta string) error {
	fmt.Print(delta)
	return nil
}

func (stdoutSink) WriteError(msg string) {
	fmt.Printf("\n[stream error: %s]\n", msg)
}

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	conversationRepo := repository.NewPgConversationRepository(pool)
	llmClient := llm.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey)
	relay := service.NewRelay(logger, llmClient, conversationRepo)

	userID := os.Getenv("CLI_CHAT_USER")
	if userID == "" {
		userID = "cli_test"
	}

	var history []domain.Message
	conversationID := ""

	fmt.Printf("===== chat-relay CLI (model %s) =====\n", cfg.LLMModel)
	for {
		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}

		history = append(history, domain.Message{Role: domain.RoleUser, Content: line})
		result, err := relay.Run(ctx, userID, domain.TurnInput{
			ConversationID: conversationID,
			Model:          cfg.LLMModel,
			Messages:       history,
		}, stdoutSink{})
		if err != nil {
			log.Fatalf("turn failed: %v", err)
		}
		conversationID = result.ConversationID

		if result.Persisted {
			// El historial local refleja lo que quedó persistido.
			conv, err := conversationRepo.GetByID(ctx, userID, conversationID)
			if err != nil {
				log.Fatalf("reload conversation: %v", err)
			}
			history = conv.Messages
		} else {
			fmt.Printf("\n[warning: turn not persisted: %v]\n", result.PersistErr)
		}
		fmt.Println()
	}
}
