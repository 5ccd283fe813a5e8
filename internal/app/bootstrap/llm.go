package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/myclarix/lumina/internal/assistant"
	appconfig "github.com/myclarix/lumina/internal/config"
	"github.com/myclarix/lumina/internal/dialog"
	"github.com/myclarix/lumina/pkg/logging"
)

// BuildLLMClient wires the provider named by LLM_PROVIDER, wrapped with
// LLM_FALLBACK_PROVIDER when set. It returns a nil client for "none".
// awsCfg is only needed for bedrock. The returned cleanup is never nil.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (assistant.LLMClient, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	primary, closePrimary, err := buildProvider(ctx, cfg.LLMProvider, cfg, awsCfg)
	if err != nil {
		return nil, noop, err
	}
	if primary == nil {
		logger.Warn("no LLM provider configured; non-booking messages get the fallback reply")
		return nil, noop, nil
	}

	fallbackName := cfg.LLMFallbackProvider
	if fallbackName == "" || fallbackName == cfg.LLMProvider {
		logger.Info("llm provider", "provider", cfg.LLMProvider)
		return primary, closePrimary, nil
	}
	fallback, closeFallback, err := buildProvider(ctx, fallbackName, cfg, awsCfg)
	if err != nil {
		logger.Warn("llm fallback provider unavailable", "provider", fallbackName, "error", err)
		return primary, closePrimary, nil
	}
	logger.Info("llm provider", "provider", cfg.LLMProvider, "fallback", fallbackName)
	return assistant.NewFallbackLLMClient(primary, fallback, logger), func() {
		closePrimary()
		closeFallback()
	}, nil
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config, awsCfg *aws.Config) (assistant.LLMClient, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, noop, nil
	case "gemini":
		client, err := assistant.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, noop, fmt.Errorf("bootstrap: bedrock requires BEDROCK_MODEL_ID")
		}
		if awsCfg == nil {
			return nil, noop, fmt.Errorf("bootstrap: bedrock requires an AWS config")
		}
		return assistant.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), noop, nil
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown LLM provider %q", name)
	}
}

// BuildReplier returns the dialog's free-chat replier, or nil without a client.
func BuildReplier(client assistant.LLMClient, logger *logging.Logger) dialog.Replier {
	if client == nil {
		return nil
	}
	return assistant.NewLLMReplier(client, assistant.ReplierConfig{}, logger)
}

// NeedsAWS reports whether any configured backend talks to AWS.
func NeedsAWS(cfg *appconfig.Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.AppointmentBackend == "dynamodb" ||
		cfg.LLMProvider == "bedrock" ||
		cfg.LLMFallbackProvider == "bedrock"
}
