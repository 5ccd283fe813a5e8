package whatsapp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupeTTL covers Meta's redelivery window for unacknowledged webhooks.
const DefaultDedupeTTL = 24 * time.Hour

// Deduper records WhatsApp message ids that were already handled.
type Deduper interface {
	// MarkProcessed returns false when the id was seen before.
	MarkProcessed(ctx context.Context, messageID string) (bool, error)
}

// RedisDeduper keeps seen message ids as expiring Redis keys.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if client == nil {
		panic("whatsapp: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{client: client, ttl: ttl, prefix: "wa:processed:"}
}

func (d *RedisDeduper) MarkProcessed(ctx context.Context, messageID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+messageID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("whatsapp: mark processed: %w", err)
	}
	return ok, nil
}

// MemoryDeduper is the single-instance fallback.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &MemoryDeduper{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) MarkProcessed(_ context.Context, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, expires := range d.seen {
		if now.After(expires) {
			delete(d.seen, id)
		}
	}
	if _, ok := d.seen[messageID]; ok {
		return false, nil
	}
	d.seen[messageID] = now.Add(d.ttl)
	return true, nil
}
