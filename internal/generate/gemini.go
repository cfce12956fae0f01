package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini uses structured output so replies are valid JSON arrays.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg ProviderConfig) (*Gemini, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string  { return ProviderGemini }
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.ResponseMIMEType = "application/json"
	if len(req.Schema.Fields) > 0 {
		m.ResponseSchema = geminiSchema(req.Schema)
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", classify(fmt.Errorf("gemini: %w", err))
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", errors.New("empty response from gemini")
	}
	return sb.String(), nil
}

func (g *Gemini) Close() error { return g.client.Close() }

func geminiSchema(s Schema) *genai.Schema {
	props := make(map[string]*genai.Schema, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = &genai.Schema{Type: genai.TypeString, Description: f.Description}
		required = append(required, f.Name)
	}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   required,
		},
	}
}
