package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"threadline/internal/domain/models/chat"
	chatSvc "threadline/internal/domain/services/chat"
)

// Client wires the Store, Registry, Coordinator and Lifecycle Controller
// around one State and one Gateway.
type Client struct {
	state     *State
	coord     *Coordinator
	lifecycle *Lifecycle
	logger    *slog.Logger
}

type clientOptions struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
	policy SelectPolicy
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ClientOption {
	return func(o *clientOptions) { o.now = now }
}

// WithIDGenerator overrides the generator for committed message ids.
func WithIDGenerator(newID func() string) ClientOption {
	return func(o *clientOptions) { o.newID = newID }
}

// WithSelectPolicy chooses how SelectConversation loads a thread.
func WithSelectPolicy(p SelectPolicy) ClientOption {
	return func(o *clientOptions) { o.policy = p }
}

// NewClient builds a client with no user signed in.
func NewClient(gateway chatSvc.Gateway, opts ...ClientOption) *Client {
	o := clientOptions{
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
		policy: SelectLocal,
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "session")

	state := NewState(o.now)
	lifecycle := NewLifecycle(state, gateway, o.policy, logger, o.now)
	coord := NewCoordinator(state, gateway, lifecycle, logger, o.now, o.newID)

	return &Client{
		state:     state,
		coord:     coord,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// Authenticate signs userID in, loads the full history and checks the
// gateway. Both remote steps run even if the first fails.
func (c *Client) Authenticate(ctx context.Context, userID string) error {
	if err := c.lifecycle.SignIn(userID); err != nil {
		return err
	}
	histErr := c.lifecycle.FetchHistory(ctx)
	healthErr := c.coord.CheckHealth(ctx)
	return errors.Join(histErr, healthErr)
}

// Snapshot returns a copy of the observable state.
func (c *Client) Snapshot() Snapshot { return c.state.Snapshot() }

// Coordinator exposes the request coordinator.
func (c *Client) Coordinator() *Coordinator { return c.coord }

// Lifecycle exposes the lifecycle controller.
func (c *Client) Lifecycle() *Lifecycle { return c.lifecycle }

// SetInput replaces the input buffer.
func (c *Client) SetInput(text string) { c.coord.SetInput(text) }

// Submit sends the input buffer to the current conversation.
func (c *Client) Submit(ctx context.Context) (chat.Message, error) {
	return c.coord.Submit(ctx)
}

// Send delivers text to conversationID, creating a conversation when it is "".
func (c *Client) Send(ctx context.Context, text, conversationID string) (chat.Message, error) {
	return c.coord.Send(ctx, text, conversationID)
}

// CheckHealth probes the gateway and records the connection status.
func (c *Client) CheckHealth(ctx context.Context) error { return c.coord.CheckHealth(ctx) }

// RetryConnection re-checks health and reloads history.
func (c *Client) RetryConnection(ctx context.Context) error { return c.coord.RetryConnection(ctx) }

// FetchHistory reloads the exchange log and rebuilds the conversation list.
func (c *Client) FetchHistory(ctx context.Context) error { return c.lifecycle.FetchHistory(ctx) }

// NewConversation opens a fresh "New Chat" placeholder and returns its id.
func (c *Client) NewConversation(ctx context.Context) (string, error) {
	return c.lifecycle.NewConversation(ctx)
}

// SelectConversation opens id and loads its thread.
func (c *Client) SelectConversation(ctx context.Context, id string) error {
	return c.lifecycle.SelectConversation(ctx, id)
}

// ArchiveConversation moves id to the archive.
func (c *Client) ArchiveConversation(id string) error { return c.lifecycle.ArchiveConversation(id) }

// DeleteConversation deletes id remotely, then locally.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.lifecycle.DeleteConversation(ctx, id)
}

// EditTitle renames id.
func (c *Client) EditTitle(id, title string) error { return c.lifecycle.EditTitle(id, title) }

// ShowArchived switches the list to archived conversations.
func (c *Client) ShowArchived() { c.lifecycle.ShowArchived() }

// HideArchived switches the list back to active conversations.
func (c *Client) HideArchived() { c.lifecycle.HideArchived() }

// OpenArchived leaves the archive view and opens id.
func (c *Client) OpenArchived(ctx context.Context, id string) error {
	return c.lifecycle.OpenArchived(ctx, id)
}

// Inspect runs fn with the state locked. fn must not call back into c.
func (c *Client) Inspect(fn func(*State)) {
	c.state.update(func() { fn(c.state) })
}

// DismissError clears the visible error.
func (c *Client) DismissError() {
	c.state.update(func() { c.state.Connection.Err = nil })
}
