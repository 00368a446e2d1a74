package model

// Role identifies who authored a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged entry in a conversation. Entries are
// immutable once appended; the whole ordered sequence is replayed to the
// completion gateway verbatim.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
