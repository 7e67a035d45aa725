package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	llmprovider "github.com/haowjy/meridian-llm-go"

	"threadline/internal/profile"
)

const blockTypeText = "text"

// generator is the part of llmprovider.Provider the responder needs.
type generator interface {
	GenerateResponse(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.GenerateResponse, error)
}

// Responder answers one user message with one assistant reply. Each call is
// independent; earlier exchanges are not sent to the model.
type Responder struct {
	provider generator
	name     string
	model    string
	profile  *profile.Profile
	logger   *slog.Logger
}

// NewResponder wraps provider using the sampling settings of p. The model
// comes from the profile for providerName, else defaultModel.
func NewResponder(provider llmprovider.Provider, providerName, defaultModel string, p *profile.Profile, logger *slog.Logger) *Responder {
	return newResponder(provider, providerName, p.Model(providerName, defaultModel), p, logger)
}

func newResponder(g generator, name, model string, p *profile.Profile, logger *slog.Logger) *Responder {
	return &Responder{
		provider: g,
		name:     name,
		model:    model,
		profile:  p,
		logger:   logger,
	}
}

// Name identifies the backing provider in health output.
func (r *Responder) Name() string { return r.name }

// Respond sends message with the profile's system prompt and returns the
// concatenated text of the reply.
func (r *Responder) Respond(ctx context.Context, message string) (string, error) {
	text := message
	maxTokens := r.profile.MaxTokens
	temperature := r.profile.Temperature
	system := r.profile.SystemPrompt

	req := &llmprovider.GenerateRequest{
		Messages: []llmprovider.Message{{
			Role: "user",
			Blocks: []*llmprovider.Block{{
				BlockType:   blockTypeText,
				Sequence:    0,
				TextContent: &text,
			}},
		}},
		Model: r.model,
		Params: &llmprovider.RequestParams{
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			System:      &system,
		},
	}

	start := time.Now()
	resp, err := r.provider.GenerateResponse(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}

	reply := replyText(resp)
	if reply == "" {
		return "", errors.New("generate response: empty reply")
	}

	r.logger.Debug("llm reply",
		"provider", r.name,
		"model", r.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"length", len(reply),
	)
	return reply, nil
}

func replyText(resp *llmprovider.GenerateResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range resp.Blocks {
		if block == nil || block.BlockType != blockTypeText || block.TextContent == nil {
			continue
		}
		sb.WriteString(*block.TextContent)
	}
	return strings.TrimSpace(sb.String())
}
