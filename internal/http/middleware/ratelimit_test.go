package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/myclarix/lumina/internal/tenancy"
)

func TestRateLimiterRefills(t *testing.T) {
	now := time.Date(2025, 12, 16, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("expected burst of 2 to be allowed")
	}
	if rl.Allow("a") {
		t.Fatalf("expected third request to be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("expected other keys to have their own bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Fatalf("expected a token after one second")
	}
}

func TestRateLimiterEvict(t *testing.T) {
	now := time.Date(2025, 12, 16, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }
	rl.Allow("old")
	now = now.Add(20 * time.Minute)
	rl.Allow("fresh")

	if got := rl.Evict(10 * time.Minute); got != 1 {
		t.Fatalf("expected 1 eviction, got %d", got)
	}
}

func TestRateLimitMiddlewareKeysByClient(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1)
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(clientID string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if clientID != "" {
			req = req.WithContext(tenancy.WithClientID(req.Context(), clientID))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("c1"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := send("c1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	// Same IP, different client.
	if code := send("c2"); code != http.StatusOK {
		t.Fatalf("expected 200 for another client, got %d", code)
	}
	if code := send(""); code != http.StatusOK {
		t.Fatalf("expected 200 for first anonymous request, got %d", code)
	}
	if code := send(""); code != http.StatusTooManyRequests {
		t.Fatalf("expected anonymous requests to share the IP bucket, got %d", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	stop := make(chan struct{})
	defer close(stop)
	mw := RateLimit(0, 1, stop)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected limiting to be disabled, got %d", rec.Code)
		}
	}
}
