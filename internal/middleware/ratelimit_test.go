package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/replydesk/server/internal/session"
)

func newTestLimiter(t *testing.T, window time.Duration, max int, now *time.Time) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(window, max)
	rl.now = func() time.Time { return *now }
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_slidingWindow(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, time.Minute, 2, &now)

	if !rl.Allow("k") || !rl.Allow("k") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("k") {
		t.Fatal("third request inside the window should be rejected")
	}
	if !rl.Allow("other") {
		t.Fatal("keys are independent")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("k") {
		t.Fatal("request after the window should pass")
	}
}

func TestRateLimiter_cleanup(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, time.Minute, 5, &now)
	rl.Allow("a")

	now = now.Add(2 * time.Minute)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.requests) != 0 {
		t.Errorf("expected idle keys to be removed, have %d", len(rl.requests))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, time.Minute, 1, &now)
	h := RateLimitMiddleware(rl, GetIPKey)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}

func TestGetSessionOrIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/payment/flows", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if got := GetSessionOrIPKey(req); got != "ip:203.0.113.9" {
		t.Errorf("without session: %q", got)
	}

	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "cookie-value"})
	if got := GetSessionOrIPKey(req); got != "session:"+session.HashKey("cookie-value") {
		t.Errorf("with session cookie: %q", got)
	}
}
