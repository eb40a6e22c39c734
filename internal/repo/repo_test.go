package repo

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/replydesk/server/internal/charge"
	"github.com/replydesk/server/internal/model"
	"github.com/replydesk/server/internal/session"
)

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestRedisSessionStore_ttlFollowsToken(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	s := &RedisSessionStore{now: func() time.Time { return now }}

	if got := s.ttlFor(model.Session{Token: tokenExpiringAt(t, now.Add(2*time.Hour))}); got != 2*time.Hour+expiredSessionGrace {
		t.Errorf("ttl = %v, want 2h plus grace", got)
	}
	if got := s.ttlFor(model.Session{Token: tokenExpiringAt(t, now.Add(-time.Hour))}); got != expiredSessionGrace-time.Hour {
		t.Errorf("recently expired token ttl = %v, want %v", got, expiredSessionGrace-time.Hour)
	}
	if got := s.ttlFor(model.Session{Token: tokenExpiringAt(t, now.Add(-2*expiredSessionGrace))}); got != minSessionTTL {
		t.Errorf("long expired token ttl = %v, want %v", got, minSessionTTL)
	}
	if got := s.ttlFor(model.Session{}); got != defaultSessionTTL {
		t.Errorf("no token ttl = %v, want %v", got, defaultSessionTTL)
	}
}

// the session must outlive its token so the gate sees an expired session, not a missing one
func TestRedisSessionStore_ttlOutlivesToken(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	s := &RedisSessionStore{now: func() time.Time { return now }}

	exp := now.Add(time.Hour)
	ttl := s.ttlFor(model.Session{Token: tokenExpiringAt(t, exp)})
	if !now.Add(ttl).After(exp.Add(time.Minute)) {
		t.Errorf("ttl %v ends at or before token expiry", ttl)
	}
}

func TestRedisSessionKey_hashesKey(t *testing.T) {
	got := redisSessionKey("raw-cookie")
	if got != sessionKeyPrefix+session.HashKey("raw-cookie") {
		t.Errorf("unexpected key %q", got)
	}
}

func TestEventMessage(t *testing.T) {
	tests := []struct {
		name string
		t    charge.Transition
		want string
	}{
		{"success", charge.Transition{Outcome: charge.OutcomeSendPIN}, ""},
		{"rejected", charge.Transition{Err: &charge.RejectionError{Status: "failed", Message: "Declined"}}, "Declined"},
		{"transport", charge.Transition{Err: &charge.TransportError{Err: errors.New("dial tcp: refused")}}, "backend call failed"},
	}
	for _, tt := range tests {
		if got := eventMessage(tt.t); got != tt.want {
			t.Errorf("%s: eventMessage = %q, want %q", tt.name, got, tt.want)
		}
	}
}
