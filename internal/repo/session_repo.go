package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/replydesk/server/internal/auth"
	"github.com/replydesk/server/internal/model"
	"github.com/replydesk/server/internal/session"
)

// SessionRepo is the PostgreSQL session.Store. Rows are keyed by the SHA256
// of the session cookie; the raw key is never written.
type SessionRepo interface {
	session.Store
	// Find returns the full persisted row for key
	Find(ctx context.Context, key string) (model.SessionRecord, error)
	// DeleteExpired removes sessions whose token expired before cutoff
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new SessionRepo instance
func NewSessionRepo(db *sql.DB) SessionRepo {
	return &sessionRepo{db: db}
}

// Get returns the session stored under key, or session.ErrNotFound
func (r *sessionRepo) Get(ctx context.Context, key string) (model.Session, error) {
	rec, err := r.Find(ctx, key)
	if err != nil {
		return model.Session{}, err
	}
	return rec.Session, nil
}

// Find returns the persisted row for key
func (r *sessionRepo) Find(ctx context.Context, key string) (model.SessionRecord, error) {
	var rec model.SessionRecord
	var profile []byte
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, key_hash, token, profile, created_at, updated_at, expires_at
		FROM portal_sessions
		WHERE key_hash = $1
	`, session.HashKey(key)).Scan(
		&rec.ID,
		&rec.KeyHash,
		&rec.Session.Token,
		&profile,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SessionRecord{}, session.ErrNotFound
		}
		return model.SessionRecord{}, fmt.Errorf("find session: %w", err)
	}

	if len(profile) > 0 && string(profile) != "null" {
		var p model.UserProfile
		if err := json.Unmarshal(profile, &p); err != nil {
			return model.SessionRecord{}, fmt.Errorf("decode session profile: %w", err)
		}
		rec.Session.Profile = &p
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		rec.ExpiresAt = &t
	}
	return rec, nil
}

// Set inserts or replaces the session under key
func (r *sessionRepo) Set(ctx context.Context, key string, s model.Session) error {
	var profile any // NULL when there is no cached profile
	if s.Profile != nil {
		raw, err := json.Marshal(s.Profile)
		if err != nil {
			return fmt.Errorf("encode session profile: %w", err)
		}
		profile = string(raw)
	}

	var expiresAt sql.NullTime
	if exp, ok := auth.ExpiresAt(s.Token); ok {
		expiresAt = sql.NullTime{Time: exp, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO portal_sessions (key_hash, token, profile, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key_hash) DO UPDATE
		SET token = EXCLUDED.token,
		    profile = EXCLUDED.profile,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = now()
	`, session.HashKey(key), s.Token, profile, expiresAt)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Clear deletes the session under key. Clearing a missing key is not an error.
func (r *sessionRepo) Clear(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM portal_sessions WHERE key_hash = $1`, session.HashKey(key))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions whose token expired before cutoff
func (r *sessionRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM portal_sessions WHERE expires_at IS NOT NULL AND expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
