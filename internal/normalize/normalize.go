// Package normalize fills the optional section metadata: plain-text content,
// token counts and the tokenizer that produced them.
package normalize

import (
	"github.com/dgallion1/embedprep/internal/doctree"
)

// Normalizer rewrites section bodies to plain text and counts their tokens.
type Normalizer struct {
	counter TokenCounter
}

// New returns a Normalizer. A nil counter falls back to Estimate.
func New(counter TokenCounter) *Normalizer {
	if counter == nil {
		counter = Estimate{}
	}
	return &Normalizer{counter: counter}
}

// Counter returns the TokenCounter behind token_count.
func (n *Normalizer) Counter() TokenCounter {
	return n.counter
}

// NewForModel prefers a tiktoken encoding and falls back to Estimate when the
// encoding cannot be loaded.
func NewForModel(model string) *Normalizer {
	tk := NewTiktoken(model)
	if !tk.Available() {
		return New(Estimate{})
	}
	return New(tk)
}

// Normalize returns a copy of s with its original content preserved and its
// text reduced to plain text. On failure the text is left untouched and the
// error recorded in the metadata.
func (n *Normalizer) Normalize(s doctree.Section) doctree.Section {
	plain := PlainText(s.Text)
	count, err := n.counter.Count(plain)
	if err != nil {
		s.SetError(err.Error())
		return s
	}

	name := n.counter.Name()
	s.Metadata.OriginalContent = &doctree.MarkdownContent{Header: s.Header, Text: s.Text}
	s.Text = plain
	s.Metadata.TokenCount = &count
	s.Metadata.ModelVersion = &name
	s.Metadata.Normalized = true
	s.Metadata.Error = nil
	return s
}

// CountOnly fills the token count and tokenizer name without rewriting text.
func (n *Normalizer) CountOnly(s doctree.Section) doctree.Section {
	count, err := n.counter.Count(s.Text)
	if err != nil {
		s.SetError(err.Error())
		return s
	}
	name := n.counter.Name()
	s.Metadata.TokenCount = &count
	s.Metadata.ModelVersion = &name
	return s
}

// All normalizes every section in place.
func (n *Normalizer) All(sections []doctree.Section) {
	for i := range sections {
		sections[i] = n.Normalize(sections[i])
	}
}
