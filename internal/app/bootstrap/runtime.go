package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/myclarix/lumina/internal/config"
	"github.com/myclarix/lumina/internal/dialog"
	"github.com/myclarix/lumina/internal/webchat"
	"github.com/myclarix/lumina/pkg/logging"
)

const stateSweepInterval = 10 * time.Minute

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// StateStore is a dialog state store that may hold background resources.
type StateStore interface {
	dialog.StateStore
	Close() error
}

// BuildStateStore selects the dialog state backend from STATE_BACKEND.
func BuildStateStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (StateStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.StateBackend {
	case "", "memory":
		logger.Info("dialog state backend", "backend", "memory", "ttl", cfg.StateTTL)
		return dialog.NewMemoryStateStore(cfg.StateTTL, stateSweepInterval), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: STATE_BACKEND=redis requires REDIS_ADDR")
		}
		logger.Info("dialog state backend", "backend", "redis", "ttl", cfg.StateTTL)
		return nopCloser{dialog.NewRedisStateStore(redisClient, cfg.StateTTL, logger)}, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown STATE_BACKEND %q", cfg.StateBackend)
	}
}

type nopCloser struct{ dialog.StateStore }

func (nopCloser) Close() error { return nil }

// BuildTranscriptStore keeps chat history in Redis when available and in
// memory otherwise.
func BuildTranscriptStore(redisClient *redis.Client) webchat.TranscriptStore {
	if redisClient == nil {
		return webchat.NewMemoryTranscriptStore(webchat.DefaultTranscriptSize)
	}
	return webchat.NewRedisTranscriptStore(redisClient, webchat.DefaultTranscriptTTL)
}
