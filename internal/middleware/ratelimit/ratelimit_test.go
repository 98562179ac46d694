package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestAllow(t *testing.T) {
	c := &clock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: 3}).WithClock(c.now)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("62811") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("62811") {
		t.Fatal("fourth request in the same minute should be refused")
	}
	if !rl.Allow("62822") {
		t.Fatal("other senders have their own budget")
	}
	if rl.Hits() != 1 {
		t.Fatalf("hits = %d, want 1", rl.Hits())
	}

	// A steady stream must not keep the window open forever.
	c.t = c.t.Add(time.Minute)
	if !rl.Allow("62811") {
		t.Fatal("a new minute should reset the budget")
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	c := &clock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	rl := NewLimiter(DefaultConfig()).WithClock(c.now)
	defer rl.Stop()

	rl.Allow("a")
	c.t = c.t.Add(9 * time.Minute)
	rl.Allow("b")
	c.t = c.t.Add(2 * time.Minute)

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("active = %d, want 1", rl.ActiveClients())
	}
}

func TestMiddleware(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	defer rl.Stop()
	rl.Stop() // idempotent

	h := rl.Middleware(func(r *http.Request) string { return r.Header.Get("X-Sender") }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	codes := []int{}
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		req.Header.Set("X-Sender", "62811")
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests && rr.Header().Get("Retry-After") != "60" {
			t.Errorf("missing Retry-After header")
		}
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}
