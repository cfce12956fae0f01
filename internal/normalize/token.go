package normalize

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens in text and names the tokenizer it used.
type TokenCounter interface {
	Count(text string) (int, error)
	Name() string
}

// Estimate is a rough word-based counter that needs no vocabulary files.
type Estimate struct{}

// Count gives roughly 1.33 tokens per word for English text.
func (Estimate) Count(text string) (int, error) {
	return EstimateTokens(text), nil
}

func (Estimate) Name() string { return "estimate" }

// EstimateTokens gives a rough token count from the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// Tiktoken counts with a BPE encoding. The encoding is loaded on first use,
// which may download vocabulary files.
type Tiktoken struct {
	model string

	once sync.Once
	enc  *tiktoken.Tiktoken
	name string
	err  error
}

// NewTiktoken accepts either a model name ("gpt-4o") or an encoding name
// ("cl100k_base").
func NewTiktoken(model string) *Tiktoken {
	return &Tiktoken{model: model, name: model}
}

func (t *Tiktoken) load() {
	t.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(t.model)
		if err == nil {
			t.enc = enc
			return
		}
		enc, err = tiktoken.GetEncoding(t.model)
		if err != nil {
			t.err = fmt.Errorf("load tokenizer %q: %w", t.model, err)
			return
		}
		t.enc = enc
	})
}

func (t *Tiktoken) Count(text string) (int, error) {
	t.load()
	if t.err != nil {
		return 0, t.err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *Tiktoken) Name() string { return t.name }

// Available reports whether the encoding could be loaded.
func (t *Tiktoken) Available() bool {
	t.load()
	return t.err == nil
}
