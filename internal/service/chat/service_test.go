package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadline/internal/config"
	"threadline/internal/domain"
	"threadline/internal/domain/models/chat"
	chatSvc "threadline/internal/domain/services/chat"
	"threadline/internal/repository/memory"
)

type stubResponder struct {
	name   string
	reply  string
	err    error
	prompt string
}

func (r *stubResponder) Respond(_ context.Context, message string) (string, error) {
	r.prompt = message
	return r.reply, r.err
}

func (r *stubResponder) Name() string { return r.name }

type failingRepo struct {
	*memory.ExchangeRepository
	createErr error
	deleteErr error
}

func (r *failingRepo) Create(ctx context.Context, msg *chat.Message) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.ExchangeRepository.Create(ctx, msg)
}

func (r *failingRepo) DeleteBySession(ctx context.Context, userID, sessionID string) (int64, error) {
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	return r.ExchangeRepository.DeleteBySession(ctx, userID, sessionID)
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo *failingRepo, responder *stubResponder) *Service {
	svc := NewService(repo, responder, discardLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestSendStoresExchange(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{ExchangeRepository: memory.NewExchangeRepository()}
	responder := &stubResponder{name: "lorem", reply: "hello there"}
	svc := newTestService(repo, responder)

	resp, err := svc.Send(ctx, &chatSvc.SendRequest{UserID: "u1", Message: "hi", ConversationID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, []chat.Turn{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello there"},
	}, resp.History)
	assert.Equal(t, "hi", responder.prompt)

	msgs, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.NotEmpty(t, msgs[0].ID)
	assert.Equal(t, "c1", msgs[0].SessionID)
	assert.Equal(t, fixedNow, msgs[0].Timestamp)
	assert.Equal(t, resp.History, msgs[0].History)
}

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name string
		req  chatSvc.SendRequest
	}{
		{name: "missing user", req: chatSvc.SendRequest{Message: "hi", ConversationID: "c1"}},
		{name: "missing conversation", req: chatSvc.SendRequest{UserID: "u1", Message: "hi"}},
		{name: "empty message", req: chatSvc.SendRequest{UserID: "u1", ConversationID: "c1"}},
		{name: "blank message", req: chatSvc.SendRequest{UserID: "u1", Message: " \n\t", ConversationID: "c1"}},
		{name: "message too long", req: chatSvc.SendRequest{
			UserID: "u1", ConversationID: "c1", Message: strings.Repeat("a", config.MaxMessageLength+1),
		}},
		{name: "user id too long", req: chatSvc.SendRequest{
			UserID: strings.Repeat("u", config.MaxUserIDLength+1), ConversationID: "c1", Message: "hi",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &failingRepo{ExchangeRepository: memory.NewExchangeRepository()}
			responder := &stubResponder{name: "lorem", reply: "unused"}
			svc := newTestService(repo, responder)

			req := tt.req
			_, err := svc.Send(context.Background(), &req)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Empty(t, responder.prompt, "responder must not be called")
		})
	}
}

func TestSendFailures(t *testing.T) {
	req := &chatSvc.SendRequest{UserID: "u1", Message: "hi", ConversationID: "c1"}

	t.Run("responder error stores nothing", func(t *testing.T) {
		repo := &failingRepo{ExchangeRepository: memory.NewExchangeRepository()}
		svc := newTestService(repo, &stubResponder{name: "lorem", err: errors.New("rate limited")})

		_, err := svc.Send(context.Background(), req)
		assert.ErrorContains(t, err, "rate limited")

		msgs, err := repo.ListByUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("store error", func(t *testing.T) {
		repo := &failingRepo{ExchangeRepository: memory.NewExchangeRepository(), createErr: errors.New("disk full")}
		svc := newTestService(repo, &stubResponder{name: "lorem", reply: "ok"})

		_, err := svc.Send(context.Background(), req)
		assert.ErrorContains(t, err, "disk full")
	})
}

func TestHistoryValidation(t *testing.T) {
	svc := newTestService(&failingRepo{ExchangeRepository: memory.NewExchangeRepository()}, &stubResponder{name: "lorem"})

	_, err := svc.History(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	msgs, err := svc.History(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestDeleteConversation(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{ExchangeRepository: memory.NewExchangeRepository()}
	svc := newTestService(repo, &stubResponder{name: "lorem", reply: "ok"})

	for _, conv := range []string{"c1", "c1", "c2"} {
		_, err := svc.Send(ctx, &chatSvc.SendRequest{UserID: "u1", Message: "hi", ConversationID: conv})
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeleteConversation(ctx, "u1", "c1"))
	msgs, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "c2", msgs[0].SessionID)

	err = svc.DeleteConversation(ctx, "u1", "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = svc.DeleteConversation(ctx, "u2", "c2")
	assert.ErrorIs(t, err, domain.ErrNotFound, "other users cannot delete")

	assert.ErrorIs(t, svc.DeleteConversation(ctx, "u1", ""), domain.ErrValidation)
	assert.ErrorIs(t, svc.DeleteConversation(ctx, "", "c2"), domain.ErrValidation)

	repo.deleteErr = errors.New("connection reset")
	assert.ErrorContains(t, svc.DeleteConversation(ctx, "u1", "c2"), "connection reset")
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name      string
		pingErr   error
		responder *stubResponder
		want      string
		services  map[string]bool
	}{
		{
			name:      "all probes pass",
			responder: &stubResponder{name: "lorem"},
			want:      chatSvc.HealthOK,
			services:  map[string]bool{"store": true, "llm": true},
		},
		{
			name:      "store unreachable",
			pingErr:   errors.New("dial tcp: refused"),
			responder: &stubResponder{name: "lorem"},
			want:      chatSvc.HealthDegraded,
			services:  map[string]bool{"store": false, "llm": true},
		},
		{
			name:      "no provider",
			responder: &stubResponder{},
			want:      chatSvc.HealthDegraded,
			services:  map[string]bool{"store": true, "llm": false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewExchangeRepository()
			repo.SetPingError(tt.pingErr)
			h := NewHealthChecker(repo, tt.responder, discardLogger())
			h.now = func() time.Time { return fixedNow }

			status := h.Check(context.Background())
			assert.Equal(t, tt.want, status.Status)
			assert.Equal(t, tt.services, status.Services)
			assert.Equal(t, fixedNow, status.Timestamp)
			assert.Equal(t, tt.want == chatSvc.HealthOK, status.OK())
		})
	}
}
