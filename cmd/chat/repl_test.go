package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadline/internal/client/gateway"
	"threadline/internal/handler"
	"threadline/internal/repository/memory"
	chatService "threadline/internal/service/chat"
	"threadline/internal/session"
)

type echoResponder struct{}

func (echoResponder) Respond(_ context.Context, message string) (string, error) {
	return "echo: " + message, nil
}

func (echoResponder) Name() string { return "echo" }

// runScript starts a gateway backed by the in-memory store and feeds input
// to the REPL, returning everything it printed.
func runScript(t *testing.T, userID, input string) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo := memory.NewExchangeRepository()
	h := handler.NewChatHandler(
		chatService.NewService(repo, echoResponder{}, logger),
		chatService.NewHealthChecker(repo, echoResponder{}, logger),
		logger,
	)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	gw, err := gateway.New(srv.URL, gateway.WithLogger(logger))
	require.NoError(t, err)
	client := session.NewClient(gw, session.WithLogger(logger))

	var out bytes.Buffer
	r := newREPL(client, strings.NewReader(input), &out, logger)
	require.NoError(t, r.run(context.Background(), userID))
	return out.String()
}

func TestREPLConversationFlow(t *testing.T) {
	out := runScript(t, "", strings.Join([]string{
		"alice",
		"hello there",
		"/list",
		"/rename 1 Greetings",
		"/new",
		"second thread",
		"/archive 1",
		"/archived",
		"/open 1",
		"/quit",
	}, "\n"))

	assert.Contains(t, out, "Signed in as alice")
	assert.Contains(t, out, "assistant: echo: hello there")
	assert.Contains(t, out, "Renamed.")
	assert.Contains(t, out, "assistant: echo: second thread")
	assert.Contains(t, out, "Archived (1)")
	assert.Contains(t, out, "Goodbye!")
}

func TestREPLDeleteAndErrors(t *testing.T) {
	out := runScript(t, "bob", strings.Join([]string{
		"first",
		"/delete 1",
		"/list",
		"/open 7",
		"/open",
		"/bogus",
		"/health",
	}, "\n"))

	assert.Contains(t, out, "Deleted.")
	assert.Contains(t, out, "Conversations (0)")
	assert.Contains(t, out, "No conversation #7.")
	assert.Contains(t, out, "Which conversation?")
	assert.Contains(t, out, "Unknown command /bogus")
	assert.Contains(t, out, "Gateway is healthy.")
}

func TestREPLGatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw, err := gateway.New(url, gateway.WithLogger(logger))
	require.NoError(t, err)
	client := session.NewClient(gw, session.WithLogger(logger))

	var out bytes.Buffer
	r := newREPL(client, strings.NewReader("/retry\n"), &out, logger)
	require.NoError(t, r.run(context.Background(), "carol"))

	assert.Contains(t, out.String(), session.MsgConnectFailed)
	assert.Contains(t, out.String(), "Use /retry to reconnect.")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview(" a \n b "))
	long := strings.Repeat("x", 60)
	assert.Equal(t, 48, len([]rune(preview(long))))
}
