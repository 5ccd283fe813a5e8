package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	transcriptKeyPrefix   = "chat_transcript:"
	DefaultTranscriptTTL  = 7 * 24 * time.Hour
	DefaultTranscriptSize = 200
)

// TranscriptMessage is one stored chat turn.
type TranscriptMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Body      string    `json:"body"`
	Channel   string    `json:"channel,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore keeps a bounded chat history per client.
type TranscriptStore interface {
	Append(ctx context.Context, clientID string, msg TranscriptMessage) error
	// List returns the last limit messages oldest first; limit <= 0 means all.
	List(ctx context.Context, clientID string, limit int64) ([]TranscriptMessage, error)
}

var errClientIDRequired = errors.New("webchat: transcript clientID required")

func prepare(msg TranscriptMessage) TranscriptMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return msg
}

// MemoryTranscriptStore is a process-local TranscriptStore.
type MemoryTranscriptStore struct {
	mu          sync.RWMutex
	byClient    map[string][]TranscriptMessage
	maxMessages int
}

func NewMemoryTranscriptStore(maxMessages int) *MemoryTranscriptStore {
	if maxMessages <= 0 {
		maxMessages = DefaultTranscriptSize
	}
	return &MemoryTranscriptStore{byClient: make(map[string][]TranscriptMessage), maxMessages: maxMessages}
}

func (s *MemoryTranscriptStore) Append(_ context.Context, clientID string, msg TranscriptMessage) error {
	if clientID == "" {
		return errClientIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.byClient[clientID], prepare(msg))
	if len(list) > s.maxMessages {
		list = append([]TranscriptMessage(nil), list[len(list)-s.maxMessages:]...)
	}
	s.byClient[clientID] = list
	return nil
}

func (s *MemoryTranscriptStore) List(_ context.Context, clientID string, limit int64) ([]TranscriptMessage, error) {
	if clientID == "" {
		return nil, errClientIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byClient[clientID]
	if limit > 0 && int64(len(list)) > limit {
		list = list[int64(len(list))-limit:]
	}
	return append([]TranscriptMessage{}, list...), nil
}

// RedisTranscriptStore keeps each transcript in a capped Redis list.
type RedisTranscriptStore struct {
	redis       *redis.Client
	tracer      trace.Tracer
	ttl         time.Duration
	maxMessages int64
}

func NewRedisTranscriptStore(client *redis.Client, ttl time.Duration) *RedisTranscriptStore {
	if client == nil {
		panic("webchat: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTranscriptTTL
	}
	return &RedisTranscriptStore{
		redis:       client,
		tracer:      otel.Tracer("lumina.internal.webchat.transcript"),
		ttl:         ttl,
		maxMessages: DefaultTranscriptSize,
	}
}

func (s *RedisTranscriptStore) Append(ctx context.Context, clientID string, msg TranscriptMessage) error {
	if clientID == "" {
		return errClientIDRequired
	}
	data, err := json.Marshal(prepare(msg))
	if err != nil {
		return fmt.Errorf("webchat: marshal transcript message: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "webchat.transcript.append")
	defer span.End()

	key := transcriptKey(clientID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	pipe.LTrim(ctx, key, -s.maxMessages, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("webchat: append transcript message: %w", err)
	}
	return nil
}

func (s *RedisTranscriptStore) List(ctx context.Context, clientID string, limit int64) ([]TranscriptMessage, error) {
	if clientID == "" {
		return nil, errClientIDRequired
	}

	ctx, span := s.tracer.Start(ctx, "webchat.transcript.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}
	raw, err := s.redis.LRange(ctx, transcriptKey(clientID), start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []TranscriptMessage{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("webchat: list transcript: %w", err)
	}

	out := make([]TranscriptMessage, 0, len(raw))
	for _, item := range raw {
		var msg TranscriptMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func transcriptKey(clientID string) string {
	return transcriptKeyPrefix + clientID
}
