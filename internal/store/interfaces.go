package store

import (
	"context"
	"errors"

	"mulabo.app/chatbot/internal/model"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("not found")

// SessionStore defines the contract for per-user session state access.
// Implementations do not serialize concurrent turns for the same user; the
// dispatcher owns that.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*model.Session, error)
	Put(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, userID string) error
}

// TurnArchive records completed exchanges for offline inspection. Archive
// failures are advisory; callers log and move on.
type TurnArchive interface {
	Record(ctx context.Context, turn model.Turn) error
}
