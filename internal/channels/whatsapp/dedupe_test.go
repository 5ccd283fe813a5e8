package whatsapp

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/myclarix/lumina/pkg/logging"
)

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper(time.Minute)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	ctx := context.Background()
	if fresh, _ := d.MarkProcessed(ctx, "wamid.1"); !fresh {
		t.Fatal("first sighting should be fresh")
	}
	if fresh, _ := d.MarkProcessed(ctx, "wamid.1"); fresh {
		t.Fatal("second sighting should be a duplicate")
	}

	now = now.Add(2 * time.Minute)
	if fresh, _ := d.MarkProcessed(ctx, "wamid.1"); !fresh {
		t.Fatal("expired id should be fresh again")
	}
}

func TestRedisDeduper(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	d := NewRedisDeduper(client, time.Hour)
	ctx := context.Background()

	fresh, err := d.MarkProcessed(ctx, "wamid.9")
	if err != nil || !fresh {
		t.Fatalf("expected fresh id, got %v %v", fresh, err)
	}
	fresh, err = d.MarkProcessed(ctx, "wamid.9")
	if err != nil || fresh {
		t.Fatalf("expected duplicate, got %v %v", fresh, err)
	}
	if ttl := mr.TTL("wa:processed:wamid.9"); ttl != time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.Close()
	if _, err := d.MarkProcessed(ctx, "wamid.10"); err == nil {
		t.Fatal("expected error with redis down")
	}
}

func TestHandleInboundSkipsRedeliveries(t *testing.T) {
	responder := &fakeResponder{}
	sender := &fakeSender{}
	h := NewWebhookHandler("token", "", responder, sender, nil, logging.New("error")).
		WithDeduper(NewMemoryDeduper(0))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.HandleInbound(w, httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", bytes.NewReader([]byte(samplePayload))))
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, w.Code)
		}
	}
	if len(responder.calls) != 1 || sender.sends != 1 {
		t.Fatalf("expected one dialog call and one send, got %d and %d", len(responder.calls), sender.sends)
	}
}
