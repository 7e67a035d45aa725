package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadline/internal/domain"
	"threadline/internal/domain/models/chat"
	chatSvc "threadline/internal/domain/services/chat"
	"threadline/internal/httputil"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc, opts ...Option) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	g, err := New(srv.URL, append(base, opts...)...)
	require.NoError(t, err)
	return g
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost", "://nope"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus string
		wantErr    error
	}{
		{name: "ok", status: 200, body: `{"status":"ok","timestamp":"2024-03-01T12:00:00Z"}`, wantStatus: "ok"},
		{name: "degraded", status: 200, body: `{"status":"degraded","timestamp":"2024-03-01T12:00:00Z"}`, wantStatus: "degraded"},
		{name: "missing status", status: 200, body: `{"timestamp":"2024-03-01T12:00:00Z"}`, wantErr: domain.ErrData},
		{name: "not json", status: 200, body: `<html>`, wantErr: domain.ErrData},
		{name: "server error", status: 503, body: ``, wantErr: domain.ErrConnectivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/health", r.URL.Path)
				writeJSON(w, tt.status, tt.body)
			})

			status, err := g.Health(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status.Status)
		})
	}
}

func TestHealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g, err := New(url, WithTimeout(time.Second))
	require.NoError(t, err)

	_, err = g.Health(context.Background())
	assert.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestHistory(t *testing.T) {
	t.Run("decodes the flat log", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/chat/user 1", r.URL.Path)
			writeJSON(w, 200, `{"data":{"messages":[
				{"id":"m1","user_id":"user 1","session_id":"s1","timestamp":"2024-03-01T12:00:00Z",
				 "history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}
			]}}`)
		})

		msgs, err := g.History(context.Background(), "user 1")
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "s1", msgs[0].SessionID)
		assert.Equal(t, "hello", msgs[0].LastContent())
		assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), msgs[0].Timestamp.UTC())
	})

	t.Run("empty history is not an error", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, `{"data":{"messages":[]}}`)
		})
		msgs, err := g.History(context.Background(), "u1")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	for name, body := range map[string]string{
		"missing messages": `{"data":{}}`,
		"null messages":    `{"data":{"messages":null}}`,
		"missing data":     `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, body)
			})
			_, err := g.History(context.Background(), "u1")
			assert.ErrorIs(t, err, domain.ErrData)
		})
	}
}

func TestSend(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/chat", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var req chatSvc.SendRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, chatSvc.SendRequest{UserID: "u1", Message: "hello", ConversationID: "c1"}, req)

			writeJSON(w, 200, `{"data":{"userId":"u1","history":[
				{"role":"user","content":"hello"},{"role":"assistant","content":"hi"}]}}`)
		}, WithBearerToken("secret"))

		resp, err := g.Send(context.Background(), &chatSvc.SendRequest{UserID: "u1", Message: "hello", ConversationID: "c1"})
		require.NoError(t, err)
		assert.Equal(t, []chat.Turn{
			{Role: chat.RoleUser, Content: "hello"},
			{Role: chat.RoleAssistant, Content: "hi"},
		}, resp.History)
	})

	t.Run("missing history", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, `{"data":{"userId":"u1"}}`)
		})
		_, err := g.Send(context.Background(), &chatSvc.SendRequest{UserID: "u1", Message: "x", ConversationID: "c1"})
		assert.ErrorIs(t, err, domain.ErrData)
	})

	t.Run("validation problem", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			httputil.RespondError(w, http.StatusBadRequest, "message: cannot be blank.")
		})
		_, err := g.Send(context.Background(), &chatSvc.SendRequest{UserID: "u1", ConversationID: "c1"})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Contains(t, err.Error(), "cannot be blank")
	})

	t.Run("server error is retryable connectivity", func(t *testing.T) {
		g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			httputil.RespondError(w, http.StatusInternalServerError, "llm unavailable")
		})
		_, err := g.Send(context.Background(), &chatSvc.SendRequest{UserID: "u1", Message: "x", ConversationID: "c1"})
		assert.ErrorIs(t, err, domain.ErrConnectivity)
		assert.Contains(t, err.Error(), "llm unavailable")
	})
}

func TestDeleteConversation(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "deleted", status: http.StatusNoContent},
		{name: "not found", status: http.StatusNotFound, wantErr: domain.ErrNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: domain.ErrUnauthorized},
		{name: "bad gateway", status: http.StatusBadGateway, wantErr: domain.ErrConnectivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/api/chat/u1/c1", r.URL.Path)
				w.WriteHeader(tt.status)
			})

			err := g.DeleteConversation(context.Background(), "u1", "c1")
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewConversationID(t *testing.T) {
	g, err := New("http://localhost:5001")
	require.NoError(t, err)

	a, err := g.NewConversationID(context.Background(), "u1")
	require.NoError(t, err)
	b, err := g.NewConversationID(context.Background(), "u1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	_, err = uuid.Parse(a)
	assert.NoError(t, err)
}
