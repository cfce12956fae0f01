package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI calls the Chat Completions API.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func NewOpenAI(cfg ProviderConfig) *OpenAI {
	// Retries are handled by Client.
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}
}

func (o *OpenAI) Name() string  { return ProviderOpenAI }
func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	prompt := req.Prompt
	if len(req.Schema.Fields) > 0 {
		prompt += "\n\n" + req.Schema.Instruction()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(o.maxTokens)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(fmt.Errorf("openai api: %w", err))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("empty response from openai")
	}
	return stripCodeBlock(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) Close() error { return nil }
