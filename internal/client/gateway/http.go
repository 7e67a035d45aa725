// Package gateway is the HTTP implementation of the chat gateway contract
// used by the client state manager.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"threadline/internal/config"
	"threadline/internal/domain"
	"threadline/internal/domain/models/chat"
	chatSvc "threadline/internal/domain/services/chat"
	"threadline/internal/httputil"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// HTTPGateway talks to the chat gateway over JSON/HTTP.
type HTTPGateway struct {
	baseURL *url.URL
	client  *http.Client
	token   string
	logger  *slog.Logger
}

var _ chatSvc.Gateway = (*HTTPGateway)(nil)

// Option configures an HTTPGateway.
type Option func(*HTTPGateway)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGateway) { g.client = c }
}

// WithTimeout sets the timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(g *HTTPGateway) { g.client.Timeout = d }
}

// WithBearerToken sends token in the Authorization header.
func WithBearerToken(token string) Option {
	return func(g *HTTPGateway) { g.token = token }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *HTTPGateway) { g.logger = logger }
}

// New returns a gateway client rooted at baseURL.
func New(baseURL string, opts ...Option) (*HTTPGateway, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway url %q", baseURL)
	}

	g := &HTTPGateway{
		baseURL: u,
		client:  &http.Client{Timeout: config.DefaultGatewayTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Health calls GET /health. A degraded status is returned without error.
func (g *HTTPGateway) Health(ctx context.Context) (*chatSvc.HealthStatus, error) {
	var status chatSvc.HealthStatus
	if err := g.do(ctx, "health", http.MethodGet, "/health", nil, &status); err != nil {
		return nil, err
	}
	if status.Status == "" {
		return nil, &domain.DataError{Op: "health", Field: "status"}
	}
	return &status, nil
}

// History calls GET /api/chat/{userId}.
func (g *HTTPGateway) History(ctx context.Context, userID string) ([]chat.Message, error) {
	var env chatSvc.Envelope[chatSvc.HistoryResponse]
	path := "/api/chat/" + url.PathEscape(userID)
	if err := g.do(ctx, "history", http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil || env.Data.Messages == nil {
		return nil, &domain.DataError{Op: "history", Field: "messages"}
	}
	return *env.Data.Messages, nil
}

// Send calls POST /api/chat.
func (g *HTTPGateway) Send(ctx context.Context, req *chatSvc.SendRequest) (*chatSvc.SendResponse, error) {
	var env chatSvc.Envelope[chatSvc.SendResponse]
	if err := g.do(ctx, "send", http.MethodPost, "/api/chat", req, &env); err != nil {
		return nil, err
	}
	if env.Data == nil || len(env.Data.History) == 0 {
		return nil, &domain.DataError{Op: "send", Field: "history"}
	}
	return env.Data, nil
}

// DeleteConversation calls DELETE /api/chat/{userId}/{conversationId}.
func (g *HTTPGateway) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	path := "/api/chat/" + url.PathEscape(userID) + "/" + url.PathEscape(conversationID)
	return g.do(ctx, "delete", http.MethodDelete, path, nil, nil)
}

// NewConversationID generates a random id locally; the gateway learns about
// a conversation with its first exchange.
func (g *HTTPGateway) NewConversationID(context.Context, string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate conversation id: %w", err)
	}
	return id.String(), nil
}

func (g *HTTPGateway) do(ctx context.Context, op, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return &domain.ConnectivityError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &domain.ConnectivityError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	g.logger.Debug("gateway call",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 300 {
		return statusError(op, resp.StatusCode, raw)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &domain.DataError{Op: op, Err: err}
	}
	return nil
}

// statusError classifies a non-2xx response. The body is an RFC 7807
// problem when the gateway produced it.
func statusError(op string, status int, body []byte) error {
	detail := http.StatusText(status)
	var problem httputil.ProblemDetail
	if err := json.Unmarshal(body, &problem); err == nil && problem.Detail != "" {
		detail = problem.Detail
	}

	switch {
	case status == http.StatusNotFound:
		return &domain.NotFoundError{Message: detail}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &domain.ValidationError{Message: detail}
	case status == http.StatusUnauthorized:
		return &domain.UnauthorizedError{Message: detail}
	case status == http.StatusForbidden:
		return &domain.ForbiddenError{Message: detail}
	default:
		return &domain.ConnectivityError{Op: op, Err: fmt.Errorf("status %d: %s", status, detail)}
	}
}
