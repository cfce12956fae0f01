package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Claude calls the Anthropic Messages API.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewClaude(cfg ProviderConfig) *Claude {
	// Retries are handled by Client.
	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Claude{
		client:    anthropic.NewClient(options...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *Claude) Name() string  { return ProviderClaude }
func (c *Claude) Model() string { return c.model }

func (c *Claude) Generate(ctx context.Context, req Request) (string, error) {
	prompt := req.Prompt
	if len(req.Schema.Fields) > 0 {
		prompt += "\n\n" + req.Schema.Instruction()
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classify(fmt.Errorf("claude api: %w", err))
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty response from claude")
	}
	return stripCodeBlock(sb.String()), nil
}

func (c *Claude) Close() error { return nil }
