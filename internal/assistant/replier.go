// Package assistant answers free-form chat messages with an LLM, using a
// Spanish system prompt chosen by conversation mode.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/myclarix/lumina/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxTokens   = 500
	defaultTemperature = 0.6
	defaultTimeout     = 20 * time.Second
)

// ErrEmptyReply is returned when the model produced no text.
var ErrEmptyReply = errors.New("assistant: empty reply")

// ReplierConfig tunes LLMReplier. Zero values take the defaults.
type ReplierConfig struct {
	Model       string
	MaxTokens   int32
	Temperature float32
	Timeout     time.Duration
}

// LLMReplier answers non-scheduling messages.
type LLMReplier struct {
	client LLMClient
	cfg    ReplierConfig
	logger *logging.Logger
	tracer trace.Tracer
}

func NewLLMReplier(client LLMClient, cfg ReplierConfig, logger *logging.Logger) *LLMReplier {
	if client == nil {
		panic("assistant: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &LLMReplier{
		client: client,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("lumina.internal.assistant"),
	}
}

// Reply asks the model for an answer to message.
func (r *LLMReplier) Reply(ctx context.Context, clientID, message, mode string) (string, error) {
	mode = NormalizeMode(mode)
	ctx, span := r.tracer.Start(ctx, "assistant.reply", trace.WithAttributes(attribute.String("lumina.mode", mode)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	started := time.Now()
	resp, err := r.client.Complete(ctx, LLMRequest{
		Model:       r.cfg.Model,
		System:      SystemPrompt(clientID, mode),
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: message}},
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		span.SetStatus(codes.Error, "empty reply")
		return "", ErrEmptyReply
	}

	r.logger.Debug("assistant reply generated",
		"client_id", clientID,
		"mode", mode,
		"output_tokens", resp.Usage.OutputTokens,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return text, nil
}
