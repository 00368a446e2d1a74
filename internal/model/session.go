package model

import "time"

// GameState holds the shiritori word-chaining state for one session.
// LastWord is always the most recently accepted word; it is empty right
// after the game starts or while no word has been accepted yet.
type GameState struct {
	Active   bool   `json:"active"`
	LastWord string `json:"last_word"`
}

// Session is the per-user unit of conversational state. Sessions are keyed
// by the platform's stable user ID; the display name only seeds the primer
// message and may change between turns without affecting identity.
type Session struct {
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	Conversation []Message `json:"conversation"`
	Game         GameState `json:"game"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Turn records one completed exchange for the offline archive.
type Turn struct {
	ID        int64
	UserID    string
	Intent    string
	Text      string
	Reply     string
	CreatedAt time.Time
}
