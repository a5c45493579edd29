package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(perMinute int) (*Limiter, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: perMinute})
	rl.now = c.now
	return rl, c
}

func TestLimiter_Window(t *testing.T) {
	rl, c := newTestLimiter(2)

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("1.1.1.1"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	c.t = c.t.Add(20 * time.Second)
	ok, wait := rl.Allow("1.1.1.1")
	if ok {
		t.Fatal("third request in window should be limited")
	}
	if wait != 40*time.Second {
		t.Errorf("wait = %v, want 40s", wait)
	}
	if ok, _ := rl.Allow("2.2.2.2"); !ok {
		t.Error("other clients are not affected")
	}

	c.t = c.t.Add(41 * time.Second)
	if ok, _ := rl.Allow("1.1.1.1"); !ok {
		t.Error("new window should allow")
	}
	if got := rl.GetMetrics().TotalHits; got != 1 {
		t.Errorf("TotalHits = %d, want 1", got)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	rl, c := newTestLimiter(5)
	rl.Allow("1.1.1.1")
	c.t = c.t.Add(11 * time.Minute)
	rl.Allow("2.2.2.2")

	if n := rl.cleanupStaleEntries(); n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if rl.ActiveClients() != 1 {
		t.Errorf("ActiveClients = %d, want 1", rl.ActiveClients())
	}
}

func TestLimiter_MiddlewareOnlyLimitsListedMethods(t *testing.T) {
	rl, _ := newTestLimiter(1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil, http.MethodPost)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(method string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/transactions", nil))
		return rr
	}

	if rr := do(http.MethodPost); rr.Code != http.StatusOK {
		t.Fatalf("first POST = %d", rr.Code)
	}
	rr := do(http.MethodPost)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	if rr := do(http.MethodGet); rr.Code != http.StatusOK {
		t.Errorf("GET should not be limited, got %d", rr.Code)
	}
}

func TestLimiter_RunStops(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, CleanupInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rl.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
