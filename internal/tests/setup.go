// Package tests holds integration tests that need a real PostgreSQL or Redis.
// They skip when DATABASE_URL or REDIS_URL is unset.
package tests

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/replydesk/server/internal/db"
	"github.com/replydesk/server/internal/repo"
)

// OpenTestDB connects to DATABASE_URL and applies migrations, or skips the test
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	log := slog.New(slog.DiscardHandler)
	database, err := db.Open(context.Background(), url, log)
	if err != nil {
		t.Fatalf("database open must succeed; check DATABASE_URL and that the test DB exists: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.Migrate(database, log); err != nil {
		t.Fatalf("migrations must run successfully: %v", err)
	}
	return database
}

// OpenTestRedis connects to REDIS_URL, or skips the test
func OpenTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}

	client, err := repo.OpenRedis(context.Background(), url)
	if err != nil {
		t.Fatalf("redis connect must succeed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// TruncatePortalTables truncates portal tables for a clean test state
func TruncatePortalTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "TRUNCATE TABLE portal_sessions, charge_events")
	if err != nil {
		return fmt.Errorf("truncate portal tables: %w", err)
	}
	return nil
}
