package doctree

import (
	"encoding/json"
	"strings"
)

// Outline is the nested header tree of a document. It acts as the virtual root.
type Outline struct {
	Children []*OutlineNode `json:"children"`
}

// OutlineNode is one header occurrence and everything nested under it.
type OutlineNode struct {
	Header   string         `json:"header"`
	Content  string         `json:"content"`  // Text between this header and the next header of any level
	Level    int            `json:"level"`    // Number of leading '#'
	Siblings []string       `json:"siblings"` // Same level, same immediate parent, excluding self
	Children []*OutlineNode `json:"children"`
}

// Len returns the number of nodes in the outline.
func (o *Outline) Len() int {
	if o == nil {
		return 0
	}
	n := 0
	var walk func([]*OutlineNode)
	walk = func(nodes []*OutlineNode) {
		for _, c := range nodes {
			n++
			walk(c.Children)
		}
	}
	walk(o.Children)
	return n
}

// MarkdownContent is a header and its body.
type MarkdownContent struct {
	Header string `json:"section_header"`
	Text   string `json:"section_text"`
}

// SectionMetadata carries hierarchy information computed by the splitter plus
// optional fields filled in by later normalization.
type SectionMetadata struct {
	TokenCount      *int              `json:"token_count"`
	ModelVersion    *string           `json:"model_version"`
	Normalized      bool              `json:"normalized"`
	Error           *string           `json:"error"`
	OriginalContent *MarkdownContent  `json:"original_content"`
	Parents         map[string]string `json:"parents"`
	Siblings        []string          `json:"siblings"`
	Source          string            `json:"source,omitempty"`
}

// MarshalJSON keeps parents and siblings as {} and [] rather than null.
func (m SectionMetadata) MarshalJSON() ([]byte, error) {
	type alias SectionMetadata
	out := alias(m)
	if out.Parents == nil {
		out.Parents = map[string]string{}
	}
	if out.Siblings == nil {
		out.Siblings = []string{}
	}
	return json.Marshal(out)
}

// Section is the flattened output unit: one header, its body and hierarchy metadata.
type Section struct {
	Header   string          `json:"section_header"`
	Text     string          `json:"section_text"`
	Level    int             `json:"header_level"`
	Metadata SectionMetadata `json:"metadata"`
}

// ToMarkdown renders the section back to an ATX header followed by its body.
func (s Section) ToMarkdown() string {
	return strings.Repeat("#", s.Level) + " " + s.Header + "\n\n" + s.Text
}

// SetError records a processing error on the section.
func (s *Section) SetError(msg string) {
	s.Metadata.Error = &msg
}
