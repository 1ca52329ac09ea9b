package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("192.0.2.1") {
			t.Fatalf("request %d rejected within burst", i+1)
		}
	}
	if rl.Allow("192.0.2.1") {
		t.Error("request over burst allowed")
	}
	if !rl.Allow("192.0.2.2") {
		t.Error("other client shares the first client's bucket")
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(10)
	rl.idle = time.Millisecond

	rl.Allow("192.0.2.1")
	if rl.Size() != 1 {
		t.Fatalf("Size = %d, want 1", rl.Size())
	}

	time.Sleep(5 * time.Millisecond)
	rl.Sweep()

	if rl.Size() != 0 {
		t.Errorf("Size after sweep = %d, want 0", rl.Size())
	}
}

func TestRateLimiterHandler(t *testing.T) {
	rl := NewRateLimiter(1)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	if first.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", second.Header().Get("Retry-After"))
	}
}
