package generate

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/*.md
var embedded embed.FS

// ErrTemplateNotFound is returned when a prompt template does not exist.
var ErrTemplateNotFound = errors.New("template not found")

// Default template names.
const (
	PairsTemplate    = "generate_anchor_only.md"
	TripletsTemplate = "generate_anchor_negative.md"
)

// Prompts renders Jinja-style prompt templates. Templates are compiled once and
// reused across goroutines.
type Prompts struct {
	fsys fs.FS

	mu       sync.Mutex
	compiled map[string]*pongo2.Template
}

// NewPrompts loads templates from dir, or from the built-in set when dir is
// empty.
func NewPrompts(dir string) *Prompts {
	var fsys fs.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			panic(err) // embedded path is fixed at build time
		}
		fsys = sub
	}
	return &Prompts{fsys: fsys, compiled: make(map[string]*pongo2.Template)}
}

// Load compiles the named template, returning ErrTemplateNotFound when it is
// missing.
func (p *Prompts) Load(name string) (*pongo2.Template, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tpl, ok := p.compiled[name]; ok {
		return tpl, nil
	}
	src, err := fs.ReadFile(p.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	tpl, err := pongo2.FromString(string(src))
	if err != nil {
		return nil, fmt.Errorf("compile template %s: %w", name, err)
	}
	p.compiled[name] = tpl
	return tpl, nil
}

// Render fills the named template's text variable.
func (p *Prompts) Render(name, text string) (string, error) {
	tpl, err := p.Load(name)
	if err != nil {
		return "", err
	}
	out, err := tpl.Execute(pongo2.Context{"text": text})
	if err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return out, nil
}
