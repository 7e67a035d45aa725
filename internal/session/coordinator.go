package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"threadline/internal/domain"
	"threadline/internal/domain/models/chat"
	chatSvc "threadline/internal/domain/services/chat"
)

// Coordinator serializes outgoing messages (at most one in flight), applies
// them optimistically and owns the health check / retry cycle.
type Coordinator struct {
	state     *State
	gateway   chatSvc.Gateway
	lifecycle *Lifecycle
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewCoordinator wires a coordinator. lifecycle is used for implicit
// conversation creation and history recovery.
func NewCoordinator(
	state *State,
	gateway chatSvc.Gateway,
	lifecycle *Lifecycle,
	logger *slog.Logger,
	now func() time.Time,
	newID func() string,
) *Coordinator {
	return &Coordinator{
		state:     state,
		gateway:   gateway,
		lifecycle: lifecycle,
		logger:    logger,
		now:       now,
		newID:     newID,
	}
}

// SetInput replaces the input buffer.
func (c *Coordinator) SetInput(text string) {
	c.state.update(func() { c.state.Compose.Input = text })
}

// Submit sends the input buffer to the current conversation.
func (c *Coordinator) Submit(ctx context.Context) (chat.Message, error) {
	var text, conversationID string
	c.state.update(func() {
		text = c.state.Compose.Input
		conversationID = c.state.Selection.CurrentConversationID
	})
	return c.Send(ctx, text, conversationID)
}

// Send delivers userText to conversationID. With no conversation id a new
// conversation is created first; if that fails the gateway is never
// contacted. An id the Registry does not hold (unknown or deleted) is
// rejected before anything changes. A call while another send is in flight
// returns ErrSendInFlight and changes nothing.
func (c *Coordinator) Send(ctx context.Context, userText, conversationID string) (chat.Message, error) {
	if strings.TrimSpace(userText) == "" {
		return chat.Message{}, &domain.ValidationError{Message: "message cannot be empty"}
	}
	if c.state.userID() == "" {
		return chat.Message{}, &domain.ValidationError{Message: "user id is required"}
	}
	if conversationID != "" {
		var known bool
		c.state.update(func() { _, known = c.state.Registry.Get(conversationID) })
		if !known {
			return chat.Message{}, &domain.ValidationError{
				Message: fmt.Sprintf("conversation %s not found", conversationID),
			}
		}
	}

	tok, err := c.BeginOptimistic(Change{Text: userText, ConversationID: conversationID})
	if err != nil {
		c.logger.Debug("send ignored, another send in flight", "conversation_id", conversationID)
		return chat.Message{}, err
	}

	if conversationID == "" {
		id, err := c.lifecycle.NewConversation(ctx)
		if err != nil {
			return chat.Message{}, c.fail(tok, fmt.Errorf("create conversation: %w", err))
		}
		c.Bind(tok, id)
	}

	c.logger.Debug("sending message",
		"conversation_id", tok.ConversationID(),
		"length", len(userText),
	)

	resp, err := c.gateway.Send(ctx, &chatSvc.SendRequest{
		UserID:         tok.userID,
		Message:        userText,
		ConversationID: tok.ConversationID(),
	})
	if err != nil {
		return chat.Message{}, c.fail(tok, err)
	}

	msg, err := c.Commit(tok, resp)
	if err != nil {
		return chat.Message{}, c.fail(tok, err)
	}

	c.logger.Info("message sent",
		"conversation_id", msg.SessionID,
		"message_id", msg.ID,
		"turns", len(msg.History),
	)
	return msg, nil
}

func (c *Coordinator) fail(tok *Token, cause error) error {
	uerr := c.Rollback(tok, cause)
	c.logger.Warn("send failed",
		"conversation_id", tok.ConversationID(),
		"reason", uerr.Reason,
		"error", cause,
	)
	return uerr
}

// CheckHealth polls the gateway. Anything but status "ok" surfaces a
// connectivity error; success clears a previous health error.
func (c *Coordinator) CheckHealth(ctx context.Context) error {
	status, err := c.gateway.Health(ctx)
	if err == nil && !status.OK() {
		got := "missing"
		if status != nil {
			got = status.Status
		}
		err = &domain.ConnectivityError{Op: opHealth, Err: fmt.Errorf("status %q", got)}
	}
	if err != nil {
		uerr := newUserError(opHealth, MsgConnectFailed, err)
		c.state.setError(uerr)
		c.logger.Warn("health check failed", "reason", uerr.Reason, "error", err)
		return uerr
	}

	c.state.update(func() { c.state.clearErrorLocked(opHealth) })
	return nil
}

// RetryConnection re-runs the health check and, only when the gateway is
// healthy again, re-fetches the full history to pick up anything missed
// during the outage. A failed message is never resent automatically.
func (c *Coordinator) RetryConnection(ctx context.Context) error {
	c.state.update(func() { c.state.Connection.Retrying = true })
	defer c.state.update(func() { c.state.Connection.Retrying = false })

	if err := c.CheckHealth(ctx); err != nil {
		return err
	}
	return c.lifecycle.FetchHistory(ctx)
}
