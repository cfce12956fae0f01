// Package generate talks to text-generation services and turns their replies
// into typed records. Providers return raw JSON array text; Client layers
// caching, retries, tracing and latency stats on top.
package generate

import (
	"context"
	"fmt"
	"strings"
)

// Field is one required string property of a generated object.
type Field struct {
	Name        string
	Description string
}

// Schema describes the reply: a JSON array of objects with the given fields.
type Schema struct {
	Fields []Field
}

// Instruction renders the schema as plain-text output instructions for
// providers without native structured output.
func (s Schema) Instruction() string {
	var sb strings.Builder
	sb.WriteString("Respond with ONLY a JSON array of objects, no other text. Each object must have these string fields:\n")
	for _, f := range s.Fields {
		fmt.Fprintf(&sb, "- %q: %s\n", f.Name, f.Description)
	}
	return sb.String()
}

// Request is a single generation call.
type Request struct {
	Prompt string
	Schema Schema
}

// Provider is a text-generation backend.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
	Model() string
	Close() error
}

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int64
}

// NewProvider builds the configured provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", cfg.Provider)
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini, "":
		return NewGemini(ctx, cfg)
	case ProviderClaude, "anthropic":
		return NewClaude(cfg), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
