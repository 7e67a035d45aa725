package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"threadline/internal/config"
	"threadline/internal/domain"
	"threadline/internal/domain/models/chat"
	chatSvc "threadline/internal/domain/services/chat"
)

// SelectPolicy decides where SelectConversation reads a thread from.
type SelectPolicy string

const (
	// SelectLocal reads the thread from the in-memory Store.
	SelectLocal SelectPolicy = "local"
	// SelectRefetch fetches the full history and filters it, leaving the
	// Store untouched.
	SelectRefetch SelectPolicy = "refetch"
)

// ParseSelectPolicy maps a config value to a policy, defaulting to local.
func ParseSelectPolicy(s string) SelectPolicy {
	if SelectPolicy(strings.ToLower(strings.TrimSpace(s))) == SelectRefetch {
		return SelectRefetch
	}
	return SelectLocal
}

// Lifecycle creates, selects, archives, deletes and renames conversations
// and switches between the thread and archive views.
type Lifecycle struct {
	state   *State
	gateway chatSvc.Gateway
	policy  SelectPolicy
	logger  *slog.Logger
	now     func() time.Time
}

// NewLifecycle wires a lifecycle controller.
func NewLifecycle(state *State, gateway chatSvc.Gateway, policy SelectPolicy, logger *slog.Logger, now func() time.Time) *Lifecycle {
	return &Lifecycle{
		state:   state,
		gateway: gateway,
		policy:  policy,
		logger:  logger,
		now:     now,
	}
}

// SignIn sets the active user. It does not talk to the gateway.
func (l *Lifecycle) SignIn(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		err := &domain.ValidationError{Message: "user id is required"}
		l.state.setError(newUserError(opAuth, MsgAuthFailed, err))
		return err
	}
	l.state.update(func() {
		l.state.UserID = userID
		l.state.clearErrorLocked(opAuth)
	})
	l.logger.Info("signed in", "user_id", userID)
	return nil
}

// FetchHistory reloads the flat log, rebuilds the Store and re-derives the
// Registry. The selected thread is reloaded from the new Store.
func (l *Lifecycle) FetchHistory(ctx context.Context) error {
	userID := l.state.userID()
	if userID == "" {
		return &domain.ValidationError{Message: "user id is required"}
	}

	l.state.update(func() { l.state.Connection.Loading = true })
	msgs, err := l.gateway.History(ctx, userID)
	if err != nil {
		l.state.update(func() { l.state.Connection.Loading = false })
		return l.fail(opHistory, MsgHistoryFailed, err, "")
	}

	var groups int
	l.state.update(func() {
		grouped := l.state.Store.Rebuild(msgs)
		l.state.Registry.Refresh(grouped)
		if sel := l.state.Selection.SelectedConversationID; sel != "" {
			l.state.Selection.Messages = l.state.Store.SelectThread(sel)
		}
		l.state.Connection.Loading = false
		l.state.clearErrorLocked(opHistory, opHealth)
		groups = grouped.Len()
	})

	l.logger.Info("history loaded",
		"user_id", userID,
		"messages", len(msgs),
		"conversations", groups,
	)
	return nil
}

// NewConversation obtains a fresh id, puts a "New Chat" placeholder at the
// head of the list and opens it with an empty thread and input. Returns ""
// and an error if no id could be obtained; callers must not send then.
func (l *Lifecycle) NewConversation(ctx context.Context) (string, error) {
	userID := l.state.userID()
	if userID == "" {
		err := &domain.ValidationError{Message: "user id is required"}
		return "", l.fail(opCreate, MsgCreateFailed, err, "")
	}

	id, err := l.gateway.NewConversationID(ctx, userID)
	if err == nil && id == "" {
		err = &domain.DataError{Op: opCreate, Field: "conversation id"}
	}
	if err != nil {
		return "", l.fail(opCreate, MsgCreateFailed, err, "")
	}

	l.state.update(func() {
		l.state.Registry.Insert(chat.Conversation{
			ID:        id,
			Title:     chat.DefaultTitle,
			Timestamp: l.now(),
			Status:    chat.StatusActive,
		})
		l.state.Selection.open(id, []chat.Message{})
		l.state.Compose.Input = ""
	})

	l.logger.Info("conversation created", "conversation_id", id, "user_id", userID)
	return id, nil
}

// SelectConversation opens id. If the thread cannot be loaded the error is
// surfaced and the previously displayed messages stay on screen.
func (l *Lifecycle) SelectConversation(ctx context.Context, id string) error {
	var known bool
	var base int
	l.state.update(func() {
		if _, known = l.state.Registry.Get(id); !known {
			return
		}
		l.state.Selection.SelectedConversationID = id
		l.state.Selection.CurrentConversationID = id
		if l.policy == SelectLocal {
			l.state.Selection.Messages = l.state.Store.SelectThread(id)
		}
		base = len(l.state.Store.SelectThread(id))
	})
	if !known {
		err := &domain.NotFoundError{Message: fmt.Sprintf("conversation %s not found", id)}
		return l.fail(opSelect, MsgLoadThreadFailed, err, id)
	}
	if l.policy == SelectLocal {
		return nil
	}

	msgs, err := l.gateway.History(ctx, l.state.userID())
	if err != nil {
		return l.fail(opSelect, MsgLoadThreadFailed, err, id)
	}

	thread := GroupBySession(msgs).Thread(id)
	l.state.update(func() {
		// A later selection wins over a slow fetch for an earlier one.
		if l.state.Selection.SelectedConversationID == id {
			// Exchanges committed while the fetch was out are kept.
			local := l.state.Store.SelectThread(id)
			for i := base; i < len(local); i++ {
				if findExchange(thread, 0, local[i].History) < 0 {
					thread = append(thread, local[i])
				}
			}
			l.state.Selection.Messages = thread
		}
		l.state.clearErrorLocked(opSelect)
	})
	return nil
}

// ArchiveConversation hides an active conversation from the main list.
// Archiving the open conversation closes it.
func (l *Lifecycle) ArchiveConversation(id string) error {
	var err error
	l.state.update(func() {
		if err = l.state.Registry.SetStatus(id, chat.StatusArchived); err != nil {
			return
		}
		if l.state.Selection.holds(id) {
			l.state.Selection.clear()
		}
	})
	if err != nil {
		return l.fail(opArchive, MsgArchiveFailed, err, id)
	}
	l.logger.Info("conversation archived", "conversation_id", id)
	return nil
}

// DeleteConversation asks the gateway to delete id and only then removes it
// from the Registry and Store. A failed delete leaves the conversation with
// its prior status. A not-found answer counts as deleted only while the
// Store holds no exchanges for id (an unsent new chat).
func (l *Lifecycle) DeleteConversation(ctx context.Context, id string) error {
	var conv chat.Conversation
	var known bool
	var stored int
	l.state.update(func() {
		conv, known = l.state.Registry.Get(id)
		stored = len(l.state.Store.SelectThread(id))
	})
	if !known {
		err := &domain.NotFoundError{Message: fmt.Sprintf("conversation %s not found", id)}
		return l.fail(opDelete, MsgDeleteFailed, err, id)
	}
	if !chat.CanTransition(conv.Status, chat.StatusDeleted) {
		err := &domain.ValidationError{Message: fmt.Sprintf("conversation %s cannot be deleted", id)}
		return l.fail(opDelete, MsgDeleteFailed, err, id)
	}

	err := l.gateway.DeleteConversation(ctx, l.state.userID(), id)
	if err != nil && (!errors.Is(err, domain.ErrNotFound) || stored > 0) {
		return l.fail(opDelete, MsgDeleteFailed, err, id)
	}

	var removed int
	l.state.update(func() {
		l.state.Registry.Remove(id)
		removed = l.state.Store.Remove(id)
		if l.state.Selection.holds(id) {
			l.state.Selection.clear()
		}
		l.state.clearErrorLocked(opDelete)
	})

	l.logger.Info("conversation deleted",
		"conversation_id", id,
		"previous_status", conv.Status,
		"messages_removed", removed,
	)
	return nil
}

// EditTitle renames id locally. The gateway never sees titles.
func (l *Lifecycle) EditTitle(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > config.MaxChatTitleLength {
		err := &domain.ValidationError{
			Message: fmt.Sprintf("title must be 1-%d characters", config.MaxChatTitleLength),
		}
		return l.fail(opRename, MsgRenameFailed, err, id)
	}

	var err error
	l.state.update(func() { err = l.state.Registry.SetTitle(id, title) })
	if err != nil {
		return l.fail(opRename, MsgRenameFailed, err, id)
	}
	return nil
}

// BeginTitleEdit flags id as being renamed.
func (l *Lifecycle) BeginTitleEdit(id string) bool {
	var ok bool
	l.state.update(func() { ok = l.state.Registry.BeginTitleEdit(id) })
	return ok
}

// ToggleMenu flips the context menu of id.
func (l *Lifecycle) ToggleMenu(id string) bool {
	var open bool
	l.state.update(func() { open = l.state.Registry.ToggleMenu(id) })
	return open
}

// ShowArchived switches to the archive view.
func (l *Lifecycle) ShowArchived() {
	l.state.update(func() { l.state.View.ShowArchived = true })
}

// HideArchived returns to the thread view.
func (l *Lifecycle) HideArchived() {
	l.state.update(func() { l.state.View.ShowArchived = false })
}

// OpenArchived opens an archived conversation and leaves the archive view.
func (l *Lifecycle) OpenArchived(ctx context.Context, id string) error {
	if err := l.SelectConversation(ctx, id); err != nil {
		return err
	}
	l.HideArchived()
	return nil
}

func (l *Lifecycle) fail(op, message string, cause error, conversationID string) error {
	uerr := newUserError(op, message, cause)
	l.state.setError(uerr)
	l.logger.Warn(op+" failed",
		"conversation_id", conversationID,
		"reason", uerr.Reason,
		"error", cause,
	)
	return uerr
}
