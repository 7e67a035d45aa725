package chat

import (
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged utterance within an exchange.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Message is one exchange round: the turns produced by a single send,
// stamped with the conversation (session) it belongs to.
// The remote log is a flat sequence of these, not grouped by conversation.
type Message struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Timestamp time.Time `json:"timestamp" db:"ts"`
	History   []Turn    `json:"history" db:"history"`
	Status    string    `json:"status,omitempty" db:"-"`
}

// FirstContent returns the content of the first turn, or "" when the
// exchange carries no turns.
func (m *Message) FirstContent() string {
	if len(m.History) == 0 {
		return ""
	}
	return m.History[0].Content
}

// LastContent returns the content of the last turn, or "".
func (m *Message) LastContent() string {
	if len(m.History) == 0 {
		return ""
	}
	return m.History[len(m.History)-1].Content
}

// Clone returns a deep copy so callers cannot mutate stored history.
func (m Message) Clone() Message {
	if m.History != nil {
		history := make([]Turn, len(m.History))
		copy(history, m.History)
		m.History = history
	}
	return m
}

// CloneMessages deep-copies a slice of messages. A nil input yields an
// empty, non-nil slice.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].Clone()
	}
	return out
}
