package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"threadline/internal/config"
	"threadline/internal/domain"
	"threadline/internal/domain/models/chat"
	chatRepo "threadline/internal/domain/repositories/chat"
	chatSvc "threadline/internal/domain/services/chat"
)

// Service implements the ChatService interface.
// Each send is one round trip to the responder and one stored exchange.
type Service struct {
	repo      chatRepo.ExchangeRepository
	responder chatSvc.Responder
	logger    *slog.Logger
	now       func() time.Time
}

var _ chatSvc.ChatService = (*Service)(nil)

// NewService creates a new chat service
func NewService(
	repo chatRepo.ExchangeRepository,
	responder chatSvc.Responder,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		responder: responder,
		logger:    logger,
		now:       time.Now,
	}
}

// Send asks the responder for a reply and stores the exchange.
func (s *Service) Send(ctx context.Context, req *chatSvc.SendRequest) (*chatSvc.SendResponse, error) {
	if err := validateSendRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	reply, err := s.responder.Respond(ctx, req.Message)
	if err != nil {
		s.logger.Error("responder failed",
			"provider", s.responder.Name(),
			"user_id", req.UserID,
			"conversation_id", req.ConversationID,
			"error", err,
		)
		return nil, fmt.Errorf("respond: %w", err)
	}

	history := []chat.Turn{
		{Role: chat.RoleUser, Content: req.Message},
		{Role: chat.RoleAssistant, Content: reply},
	}
	msg := &chat.Message{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		SessionID: req.ConversationID,
		Timestamp: s.now().UTC(),
		History:   history,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store exchange: %w", err)
	}

	s.logger.Info("exchange stored",
		"id", msg.ID,
		"user_id", msg.UserID,
		"conversation_id", msg.SessionID,
	)

	return &chatSvc.SendResponse{UserID: req.UserID, History: history}, nil
}

// History returns the user's exchanges ordered by timestamp.
func (s *Service) History(ctx context.Context, userID string) ([]chat.Message, error) {
	if err := validation.Validate(userID, userIDRules...); err != nil {
		return nil, fmt.Errorf("%w: user id %v", domain.ErrValidation, err)
	}
	return s.repo.ListByUser(ctx, userID)
}

// DeleteConversation removes every exchange of conversationID.
func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	if err := validation.Validate(userID, userIDRules...); err != nil {
		return fmt.Errorf("%w: user id %v", domain.ErrValidation, err)
	}
	if err := validation.Validate(conversationID, conversationIDRules...); err != nil {
		return fmt.Errorf("%w: conversation id %v", domain.ErrValidation, err)
	}

	n, err := s.repo.DeleteBySession(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("conversation %s not found", conversationID)}
	}

	s.logger.Info("conversation deleted",
		"user_id", userID,
		"conversation_id", conversationID,
		"exchanges", n,
	)
	return nil
}

var (
	userIDRules         = []validation.Rule{validation.Required, validation.Length(1, config.MaxUserIDLength)}
	conversationIDRules = []validation.Rule{validation.Required, validation.Length(1, config.MaxConversationIDLength)}
)

func validateSendRequest(req *chatSvc.SendRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.UserID, userIDRules...),
		validation.Field(&req.ConversationID, conversationIDRules...),
		validation.Field(&req.Message,
			validation.Required,
			validation.By(notBlank),
			validation.Length(1, config.MaxMessageLength),
		),
	)
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.ErrRequired
	}
	return nil
}
