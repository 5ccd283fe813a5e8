package webchat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTranscriptStore_CapsAndLimits(t *testing.T) {
	s := NewMemoryTranscriptStore(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, "c1", TranscriptMessage{Role: RoleUser, Body: fmt.Sprintf("m%d", i)}))
	}

	all, err := s.List(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "m2", all[0].Body)
	assert.NotEmpty(t, all[0].ID)
	assert.False(t, all[0].Timestamp.IsZero())

	last, err := s.List(ctx, "c1", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "m4", last[0].Body)

	_, err = s.List(ctx, "", 0)
	assert.Error(t, err)
	assert.Error(t, s.Append(ctx, "", TranscriptMessage{}))
}

func newRedisTranscript(t *testing.T) (*RedisTranscriptStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTranscriptStore(client, time.Hour), mr
}

func TestRedisTranscriptStore_AppendAndList(t *testing.T) {
	s, mr := newRedisTranscript(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "wa_34600111222", TranscriptMessage{Role: RoleUser, Body: "hola", Channel: "whatsapp"}))
	require.NoError(t, s.Append(ctx, "wa_34600111222", TranscriptMessage{Role: RoleAssistant, Body: "¡Hola!"}))

	msgs, err := s.List(ctx, "wa_34600111222", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hola", msgs[0].Body)
	assert.Equal(t, "whatsapp", msgs[0].Channel)
	assert.Equal(t, RoleAssistant, msgs[1].Role)

	assert.Equal(t, time.Hour, mr.TTL("chat_transcript:wa_34600111222"))
}

func TestRedisTranscriptStore_TrimsToCap(t *testing.T) {
	s, mr := newRedisTranscript(t)
	s.maxMessages = 2
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Append(ctx, "c1", TranscriptMessage{Role: RoleUser, Body: fmt.Sprintf("m%d", i)}))
	}

	items, err := mr.List("chat_transcript:c1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	msgs, err := s.List(ctx, "c1", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m3", msgs[0].Body)
}

func TestRedisTranscriptStore_SkipsCorruptEntries(t *testing.T) {
	s, mr := newRedisTranscript(t)
	ctx := context.Background()

	_, err := mr.Push("chat_transcript:c1", "{not json")
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, "c1", TranscriptMessage{Role: RoleUser, Body: "hola"}))

	msgs, err := s.List(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hola", msgs[0].Body)
}

func TestRedisTranscriptStore_EmptyAndErrors(t *testing.T) {
	s, mr := newRedisTranscript(t)
	ctx := context.Background()

	msgs, err := s.List(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	mr.Close()
	assert.Error(t, s.Append(ctx, "c1", TranscriptMessage{Body: "x"}))
	_, err = s.List(ctx, "c1", 0)
	assert.Error(t, err)
}
