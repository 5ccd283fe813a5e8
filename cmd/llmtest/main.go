package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"

	"github.com/myclarix/lumina/cmd/mainconfig"
	"github.com/myclarix/lumina/internal/app/bootstrap"
	"github.com/myclarix/lumina/internal/assistant"
	appconfig "github.com/myclarix/lumina/internal/config"
	"github.com/myclarix/lumina/pkg/logging"
)

// llmtest sends one message through the configured LLM provider chain
// (LLM_PROVIDER plus LLM_FALLBACK_PROVIDER) using the same prompt the chat uses.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "web", "prompt mode: web, whatsapp, voice")
	message := flag.String("message", "Hola, ¿qué servicios ofrecen y cuál es el horario?", "user message")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, cfg, logger, *mode, *message); err != nil {
		logger.Error("llm test failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, mode, message string) error {
	var awsCfg *aws.Config
	if bootstrap.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	client, closeClient, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer closeClient()
	if client == nil {
		return fmt.Errorf("LLM_PROVIDER is not set")
	}

	req := assistant.LLMRequest{
		System:      assistant.SystemPrompt("llmtest", mode),
		Messages:    []assistant.ChatMessage{{Role: assistant.ChatRoleUser, Content: message}},
		MaxTokens:   300,
		Temperature: 0.4,
	}

	fmt.Printf("provider=%s fallback=%s mode=%s\n", cfg.LLMProvider, cfg.LLMFallbackProvider, assistant.NormalizeMode(mode))
	start := time.Now()
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("response (%v):\n%s\n", time.Since(start).Round(time.Millisecond), resp.Text)
	fmt.Printf("tokens: in=%d out=%d\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return nil
}
