package chat

import (
	"context"
	"time"

	"threadline/internal/domain/models/chat"
)

// Health values reported by the gateway.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Services  map[string]bool `json:"services,omitempty"`
}

// OK reports whether the gateway considers itself fully healthy.
func (h *HealthStatus) OK() bool {
	return h != nil && h.Status == HealthOK
}

// SendRequest is the body of POST /api/chat.
type SendRequest struct {
	UserID         string `json:"userId"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// SendResponse carries exactly one user turn and one assistant turn.
type SendResponse struct {
	UserID  string      `json:"userId"`
	History []chat.Turn `json:"history"`
}

// HistoryResponse is the payload of GET /api/chat/{userId}. Messages is a
// pointer so an absent field can be told apart from an empty history.
type HistoryResponse struct {
	Messages *[]chat.Message `json:"messages"`
}

// Envelope wraps every /api payload, mirroring the frontend's APIResponse.
type Envelope[T any] struct {
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Gateway is the remote chat backend as seen by the client state manager.
// Implementations must classify failures as domain.ConnectivityError or
// domain.DataError.
type Gateway interface {
	// Health polls GET /health. A reachable but degraded gateway is returned
	// without error; callers decide via HealthStatus.OK.
	Health(ctx context.Context) (*HealthStatus, error)

	// History fetches the user's flat exchange log.
	// A response without a messages field is a DataError, not an empty log.
	History(ctx context.Context, userID string) ([]chat.Message, error)

	// Send posts one user message and returns the persisted exchange.
	Send(ctx context.Context, req *SendRequest) (*SendResponse, error)

	// DeleteConversation removes every exchange of a conversation.
	DeleteConversation(ctx context.Context, userID, conversationID string) error

	// NewConversationID issues a fresh conversation identifier.
	NewConversationID(ctx context.Context, userID string) (string, error)
}
