package session

import (
	"context"
	"errors"

	"github.com/replydesk/server/internal/model"
)

// ErrNotFound is returned when no session is stored under a key
var ErrNotFound = errors.New("session not found")

// Store holds the bearer token and cached profile between requests, keyed by
// the opaque session cookie value.
type Store interface {
	Get(ctx context.Context, key string) (model.Session, error)
	Set(ctx context.Context, key string, s model.Session) error
	Clear(ctx context.Context, key string) error
}
