package store

import (
	"context"
	"fmt"

	"mulabo.app/chatbot/core/db"
	"mulabo.app/chatbot/internal/model"
)

// PostgresTurnArchive persists completed turns for offline inspection.
type PostgresTurnArchive struct {
	db *db.DB
}

func NewPostgresTurnArchive(database *db.DB) *PostgresTurnArchive {
	return &PostgresTurnArchive{db: database}
}

func (a *PostgresTurnArchive) Record(ctx context.Context, turn model.Turn) error {
	const q = `
		INSERT INTO chat_turns (id, user_id, intent, inbound_text, reply_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := a.db.Pool().Exec(ctx, q,
		turn.ID,
		turn.UserID,
		turn.Intent,
		turn.Text,
		turn.Reply,
		turn.CreatedAt,
	); err != nil {
		return fmt.Errorf("recording turn: %w", err)
	}
	return nil
}
