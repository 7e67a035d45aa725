package session

import (
	"errors"
	"fmt"

	"threadline/internal/domain"
	"threadline/internal/domain/models/chat"
	chatSvc "threadline/internal/domain/services/chat"
)

// Change describes an optimistic send: the exact text the user typed and
// the conversation it is meant for ("" until an implicit create resolves it).
type Change struct {
	Text           string
	ConversationID string
}

// Token identifies one optimistic send between BeginOptimistic and its
// Commit or Rollback. The conversation id is captured here so a response is
// applied to the conversation it was sent for, whatever is selected when it
// arrives.
type Token struct {
	seq            uint64
	userID         string
	text           string
	conversationID string
	// baseline is the thread length when the send was bound; anything past
	// it was loaded while the send was in flight.
	baseline int
	settled  bool
}

// ConversationID is the conversation the send is bound to.
func (t *Token) ConversationID() string { return t.conversationID }

// Text is the input the send will restore on rollback.
func (t *Token) Text() string { return t.text }

var errTokenSettled = errors.New("optimistic send already settled")

// BeginOptimistic enters the Sending phase: the input buffer is cleared and,
// once the conversation is known, an echo of the user turn is published for
// display. Returns ErrSendInFlight if another send has not settled.
func (c *Coordinator) BeginOptimistic(change Change) (*Token, error) {
	var tok *Token
	c.state.update(func() {
		if c.state.Compose.Phase == PhaseSending {
			return
		}
		c.state.Compose.seq++
		tok = &Token{
			seq:    c.state.Compose.seq,
			userID: c.state.UserID,
			text:   change.Text,
		}
		c.state.Compose.Input = ""
		c.state.Compose.Phase = PhaseSending
		c.state.Compose.Pending = nil
		if change.ConversationID != "" {
			c.bindLocked(tok, change.ConversationID)
		}
	})
	if tok == nil {
		return nil, ErrSendInFlight
	}
	return tok, nil
}

// Bind attaches the resolved conversation id to tok and publishes the echo.
func (c *Coordinator) Bind(tok *Token, conversationID string) {
	c.state.update(func() { c.bindLocked(tok, conversationID) })
}

func (c *Coordinator) bindLocked(tok *Token, conversationID string) {
	tok.conversationID = conversationID
	tok.baseline = len(c.state.Store.SelectThread(conversationID))
	if c.state.Compose.seq != tok.seq {
		return
	}
	c.state.Compose.Pending = &chat.Message{
		ID:        fmt.Sprintf("pending-%d", tok.seq),
		UserID:    tok.userID,
		SessionID: conversationID,
		Timestamp: c.now(),
		History:   []chat.Turn{{Role: chat.RoleUser, Content: tok.text}},
		Status:    "pending",
	}
}

// Commit applies a gateway response: a new exchange is appended to the
// Store under the token's conversation, the Registry preview is updated and
// the displayed thread grows only if that conversation is still selected.
// If a history reload during the send already brought in the same exchange,
// the reloaded copy is kept and nothing is appended.
func (c *Coordinator) Commit(tok *Token, resp *chatSvc.SendResponse) (chat.Message, error) {
	if resp == nil || len(resp.History) == 0 {
		return chat.Message{}, &domain.DataError{Op: opSend, Field: "history"}
	}

	msg := chat.Message{
		ID:        c.newID(),
		UserID:    tok.userID,
		SessionID: tok.conversationID,
		Timestamp: c.now(),
		History:   append([]chat.Turn{}, resp.History...),
	}

	var err error
	c.state.update(func() {
		if tok.settled {
			err = errTokenSettled
			return
		}
		tok.settled = true

		thread := c.state.Store.SelectThread(msg.SessionID)
		if i := findExchange(thread, tok.baseline, msg.History); i >= 0 {
			msg = thread[i]
		} else {
			c.state.Store.Append(msg)
			if c.state.Selection.SelectedConversationID == msg.SessionID {
				c.state.Selection.Messages = append(c.state.Selection.Messages, msg.Clone())
			}
		}

		if !c.state.Registry.Touch(msg.SessionID, msg.LastContent(), msg.Timestamp) &&
			!c.state.Registry.Deleted(msg.SessionID) {
			c.state.Registry.Insert(chat.Conversation{
				ID:          msg.SessionID,
				Title:       chat.DefaultTitle,
				LastMessage: msg.LastContent(),
				Timestamp:   msg.Timestamp,
				Status:      chat.StatusActive,
			})
		}
		if c.state.Compose.seq == tok.seq {
			c.state.Compose.Pending = nil
			c.state.Compose.Phase = PhaseSucceeded
		}
		c.state.clearErrorLocked(opSend)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// Rollback undoes BeginOptimistic after a failure: the exact input text is
// restored, the echo is dropped and a retryable error is surfaced. The Store
// is never touched, so a failed send leaves no trace in stored data.
func (c *Coordinator) Rollback(tok *Token, cause error) *UserError {
	uerr := newUserError(opSend, MsgSendFailed, cause)
	c.state.update(func() {
		if tok.settled {
			return
		}
		tok.settled = true
		if c.state.Compose.seq == tok.seq {
			c.state.Compose.Input = tok.text
			c.state.Compose.Pending = nil
			c.state.Compose.Phase = PhaseFailed
		}
		c.state.Connection.Err = uerr
	})
	return uerr
}
