package chat

import (
	"time"
)

// Status is the client-side lifecycle flag of a conversation.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// DefaultTitle is used for conversations with no first turn yet.
const DefaultTitle = "New Chat"

// Conversation is the sidebar summary of one session, derived from its
// messages plus local lifecycle edits.
type Conversation struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	LastMessage    string    `json:"lastMessage"`
	Timestamp      time.Time `json:"timestamp"`
	Status         Status    `json:"status"`
	IsEditingTitle bool      `json:"isEditingTitle,omitempty"`
	ShowMenu       bool      `json:"showMenu,omitempty"`
}

// CanTransition reports whether a conversation may move from one status to
// another. Archived conversations can still be deleted from the archive
// view; nothing leaves deleted and nothing returns to active.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusActive:
		return to == StatusArchived || to == StatusDeleted
	case StatusArchived:
		return to == StatusDeleted
	default:
		return false
	}
}
