package chat

import (
	"context"

	"threadline/internal/domain/models/chat"
)

// ChatService is the gateway-side business logic behind the /api/chat routes.
type ChatService interface {
	// Send validates the request, asks the responder for a reply and persists
	// the exchange. Returns the user and assistant turns.
	Send(ctx context.Context, req *SendRequest) (*SendResponse, error)

	// History returns every exchange of the user ordered by timestamp.
	History(ctx context.Context, userID string) ([]chat.Message, error)

	// DeleteConversation removes every exchange of one conversation.
	// Returns domain.ErrNotFound when nothing matched.
	DeleteConversation(ctx context.Context, userID, conversationID string) error
}

// HealthService reports gateway health for GET /health.
type HealthService interface {
	Check(ctx context.Context) *HealthStatus
}

// Responder produces the assistant reply for one user message.
type Responder interface {
	// Respond returns the assistant text for message.
	Respond(ctx context.Context, message string) (string, error)

	// Name identifies the backing provider for health output and logs.
	Name() string
}
