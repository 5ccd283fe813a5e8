package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/myclarix/lumina/pkg/logging"
)

// RedisStateStore keeps dialog state in Redis so several API instances can
// share it. Every write refreshes the key's TTL.
type RedisStateStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	logger *logging.Logger
	now    func() time.Time
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisStateStore {
	if client == nil {
		panic("dialog: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &RedisStateStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("lumina.internal.dialog.state"),
		logger: logger,
		now:    time.Now,
	}
}

func stateKey(clientID string) string {
	return fmt.Sprintf("dialog_state:%s", clientID)
}

func (s *RedisStateStore) Get(ctx context.Context, clientID string) (State, error) {
	ctx, span := s.tracer.Start(ctx, "dialog.state.get")
	defer span.End()
	span.SetAttributes(attribute.String("lumina.client_id", clientID))

	data, err := s.redis.Get(ctx, stateKey(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			st := IdleState()
			st.UpdatedAt = s.now()
			payload, merr := json.Marshal(st)
			if merr == nil {
				// SetNX so a concurrent writer from another instance wins.
				if err := s.redis.SetNX(ctx, stateKey(clientID), payload, s.ttl).Err(); err != nil {
					span.RecordError(err)
				}
			}
			return st, nil
		}
		span.RecordError(err)
		return State{}, fmt.Errorf("dialog: failed to load state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		span.RecordError(err)
		s.logger.Warn("dialog state corrupted, resetting", "client_id", clientID, "error", err)
		idle := IdleState()
		if err := s.Set(ctx, clientID, idle); err != nil {
			return State{}, err
		}
		idle.UpdatedAt = s.now()
		return idle, nil
	}
	return st, nil
}

func (s *RedisStateStore) Set(ctx context.Context, clientID string, state State) error {
	ctx, span := s.tracer.Start(ctx, "dialog.state.set")
	defer span.End()
	span.SetAttributes(
		attribute.String("lumina.client_id", clientID),
		attribute.String("lumina.dialog_step", string(state.Step)),
	)

	state.UpdatedAt = s.now()
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("dialog: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(clientID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("dialog: failed to persist state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Reset(ctx context.Context, clientID string) error {
	return s.Set(ctx, clientID, IdleState())
}
