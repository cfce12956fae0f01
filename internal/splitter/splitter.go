// Package splitter breaks Markdown documents into header-hierarchical
// sections. Each section carries its parent chain (h1..h5) and the headers it
// shares a parent and level with. Lines starting with '#' inside fenced code
// blocks are never treated as headers.
package splitter

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/embedprep/internal/doctree"
)

// Splitter is stateless; one instance may be used from many goroutines.
type Splitter struct {
	restoreCode bool
	legacy      bool
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithCodeRestore controls whether code lines hidden from the header locator
// are put back into section bodies. Enabled by default.
func WithCodeRestore(restore bool) Option {
	return func(s *Splitter) { s.restoreCode = restore }
}

// WithLegacyDuplicates makes a repeated header text under the same parent
// replace the earlier child instead of keeping both, and groups siblings by
// parent text rather than parent node.
func WithLegacyDuplicates() Option {
	return func(s *Splitter) { s.legacy = true }
}

// New returns a Splitter.
func New(opts ...Option) *Splitter {
	s := &Splitter{restoreCode: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SplitText returns the document's sections in depth-first order. Input
// without headers, including empty or whitespace-only input, yields an empty
// slice.
func (s *Splitter) SplitText(text string) []doctree.Section {
	outline := s.Outline(text)
	if len(outline.Children) == 0 {
		return []doctree.Section{}
	}
	return flatten(outline.Children, map[string]string{}, make([]doctree.Section, 0, outline.Len()))
}

// Outline returns the nested header tree without flattening it.
func (s *Splitter) Outline(text string) *doctree.Outline {
	if strings.TrimSpace(text) == "" {
		return &doctree.Outline{}
	}

	protected, placeholders := protectCodeBlocks(text)
	matches := locateHeaders(protected)
	if len(matches) == 0 {
		return &doctree.Outline{}
	}

	bodies := contents(protected, matches)
	if s.restoreCode {
		restore := restorer(placeholders)
		for i := range bodies {
			bodies[i] = restore(bodies[i])
		}
	}

	return buildOutline(matches, bodies, s.legacy)
}

// SplitFile reads path as UTF-8 text and splits it.
func (s *Splitter) SplitFile(path string) ([]doctree.Section, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &PathError{Path: path, Kind: ErrNotFound, Err: err}
		}
		return nil, &PathError{Path: path, Kind: ErrIO, Err: err}
	}
	if info.IsDir() {
		return nil, &PathError{Path: path, Kind: ErrInvalidPath}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PathError{Path: path, Kind: ErrIO, Err: err}
	}
	if !utf8.Valid(data) {
		return nil, &PathError{Path: path, Kind: ErrIO, Err: errNotUTF8}
	}
	return s.SplitText(string(data)), nil
}
