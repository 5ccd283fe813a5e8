package dialog

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myclarix/lumina/internal/appointments"
	"github.com/myclarix/lumina/pkg/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStateStore_GetCreatesIdle(t *testing.T) {
	store := NewMemoryStateStore(time.Hour, 0)
	defer store.Close()

	st, err := store.Get(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, st.Step)
	assert.Nil(t, st.PendingDateTime)
	assert.Equal(t, 1, store.Len())

	again, err := store.Get(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, st, again)
}

func TestMemoryStateStore_SetResetAndIsolation(t *testing.T) {
	store := NewMemoryStateStore(0, 0)
	defer store.Close()
	ctx := context.Background()
	at := time.Date(2025, 12, 17, 19, 0, 0, 0, time.Local)

	require.NoError(t, store.Set(ctx, "client-1", awaiting(StepAwaitingConfirm, at, "asesoria")))

	st, err := store.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingConfirm, st.Step)
	require.NotNil(t, st.PendingDateTime)
	assert.True(t, st.PendingDateTime.Equal(at))
	assert.Equal(t, "asesoria", st.PendingPurpose)

	other, err := store.Get(ctx, "client-2")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, other.Step)

	require.NoError(t, store.Reset(ctx, "client-1"))
	st, err = store.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, st.Step)
	assert.Nil(t, st.PendingDateTime)
	assert.Empty(t, st.PendingPurpose)
}

func TestMemoryStateStore_ExpiresIdleEntries(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 12, 16, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStateStore(30*time.Minute, 0)
	store.now = clock.Now
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "client-1", awaiting(StepAwaitingPurpose, clock.Now(), "")))
	require.NoError(t, store.Set(ctx, "client-2", awaiting(StepAwaitingPurpose, clock.Now(), "")))

	clock.Advance(20 * time.Minute)
	require.NoError(t, store.Set(ctx, "client-2", awaiting(StepAwaitingConfirm, clock.Now(), "x")))

	clock.Advance(15 * time.Minute)
	st, err := store.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, st.Step, "expired state should read as idle")

	// client-1 was recreated by the Get above.
	clock.Advance(40 * time.Minute)
	assert.Equal(t, 2, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStateStore_JanitorStopsOnClose(t *testing.T) {
	store := NewMemoryStateStore(time.Millisecond, time.Millisecond)
	require.NoError(t, store.Set(context.Background(), "client-1", IdleState()))

	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStateStore(client, ttl, logging.New("error")), mr
}

func TestRedisStateStore_RoundTripWithTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()
	at := time.Date(2025, 12, 19, 18, 0, 0, 0, time.UTC)

	st, err := store.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, st.Step)
	assert.True(t, mr.Exists("dialog_state:client-1"))

	require.NoError(t, store.Set(ctx, "client-1", awaiting(StepAwaitingNewTime, at, "asesoria")))
	assert.Equal(t, time.Hour, mr.TTL("dialog_state:client-1"))

	st, err = store.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingNewTime, st.Step)
	require.NotNil(t, st.PendingDateTime)
	assert.True(t, st.PendingDateTime.Equal(at))
	assert.Equal(t, "asesoria", st.PendingPurpose)

	require.NoError(t, store.Reset(ctx, "client-1"))
	st, err = store.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, st.Step)
	assert.Nil(t, st.PendingDateTime)
}

func TestRedisStateStore_ExpiredKeyReadsIdle(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "client-1", awaiting(StepAwaitingConfirm, time.Now(), "")))
	mr.FastForward(2 * time.Minute)

	st, err := store.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, st.Step)
}

func TestRedisStateStore_CorruptValueResetsToIdle(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, mr.Set("dialog_state:client-1", "{not json"))
	st, err := store.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, st.Step)
	assert.Nil(t, st.PendingDateTime)

	raw, err := mr.Get("dialog_state:client-1")
	require.NoError(t, err)
	var stored State
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, StepIdle, stored.Step)
	assert.Equal(t, time.Hour, mr.TTL("dialog_state:client-1"))
}

func TestEngine_RecoversFromCorruptRedisState(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	require.NoError(t, mr.Set("dialog_state:client-1", "{not json"))

	engine := NewEngine(store, appointments.NewInMemoryRepository(), Options{
		Logger: logging.New("error"),
		Now:    func() time.Time { return tuesday },
	})
	ctx := context.Background()

	res, err := engine.HandleMessage(ctx, Inbound{ClientID: "client-1", Message: "quiero una cita mañana a las 19 por una asesoria"})
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingConfirm, res.Step)

	res, err = engine.HandleMessage(ctx, Inbound{ClientID: "client-1", Message: "si"})
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "✅")
	require.NotNil(t, res.Appointment)
}

func TestRedisStateStore_Errors(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	ctx := context.Background()

	mr.Close()
	_, err := store.Get(ctx, "client-2")
	assert.Error(t, err)
	assert.Error(t, store.Set(ctx, "client-2", IdleState()))
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("client-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size())
}
