package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/replydesk/server/internal/auth"
	"github.com/replydesk/server/internal/model"
	"github.com/replydesk/server/internal/session"
)

const (
	sessionKeyPrefix = "portal:session:"

	// used when the token carries no exp claim
	defaultSessionTTL = 24 * time.Hour
	// how long a session outlives its token so the gate can still report expiry
	expiredSessionGrace = 24 * time.Hour
	// floor for sessions stored after their grace window has passed
	minSessionTTL = time.Minute
)

// RedisSessionStore is a session.Store backed by Redis. Entries expire with
// the bearer token they carry.
type RedisSessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisSessionStore creates a Redis-backed session store
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

// OpenRedis parses a redis:// URL and verifies the connection
func OpenRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Get returns the session stored under key, or session.ErrNotFound
func (s *RedisSessionStore) Get(ctx context.Context, key string) (model.Session, error) {
	raw, err := s.client.Get(ctx, redisSessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Session{}, session.ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("redis get session: %w", err)
	}

	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return model.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

// Set stores sess under key with a TTL following the token expiry
func (s *RedisSessionStore) Set(ctx context.Context, key string, sess model.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisSessionKey(key), raw, s.ttlFor(sess)).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Clear deletes the session under key
func (s *RedisSessionStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisSessionKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) ttlFor(sess model.Session) time.Duration {
	exp, ok := auth.ExpiresAt(sess.Token)
	if !ok {
		return defaultSessionTTL
	}
	ttl := exp.Sub(s.now()) + expiredSessionGrace
	if ttl < minSessionTTL {
		return minSessionTTL
	}
	return ttl
}

func redisSessionKey(key string) string {
	return sessionKeyPrefix + session.HashKey(key)
}
