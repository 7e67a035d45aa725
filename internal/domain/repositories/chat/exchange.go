package chat

import (
	"context"

	"threadline/internal/domain/models/chat"
)

// ExchangeRepository persists one record per exchange keyed by
// (user_id, session_id) plus timestamp.
type ExchangeRepository interface {
	// Create stores an exchange. ID is assigned if empty.
	Create(ctx context.Context, msg *chat.Message) error

	// ListByUser returns all exchanges for a user ordered by timestamp.
	// Returns an empty slice if none exist.
	ListByUser(ctx context.Context, userID string) ([]chat.Message, error)

	// DeleteBySession removes all exchanges of a conversation and returns how
	// many were removed.
	DeleteBySession(ctx context.Context, userID, sessionID string) (int64, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}
