// Package convert turns supported document formats into Markdown text with
// ATX headers so the splitter can recover their structure.
package convert

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Converter renders raw document bytes as Markdown.
type Converter interface {
	Convert(r io.Reader, filename string) (string, error)
}

// SupportedExtensions lists file extensions this package can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate converter for a filename.
func ForFile(filename string, opts ...Option) (Converter, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md", ".markdown":
		return &Passthrough{}, nil
	case ".csv":
		return &CSV{}, nil
	case ".html", ".htm":
		return &HTML{}, nil
	case ".pdf":
		return &PDF{FallbackPdftotext: o.pdftotext}, nil
	case ".docx":
		return &DOCX{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// NeedsConversion reports whether the file is something other than Markdown or
// plain text.
func NeedsConversion(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown":
		return false
	}
	return IsSupportedExtension(filename)
}

// Option configures ForFile.
type Option func(*options)

type options struct {
	pdftotext bool
}

// WithPdftotext enables the pdftotext fallback for PDFs.
func WithPdftotext(enabled bool) Option {
	return func(o *options) { o.pdftotext = enabled }
}

// title derives a document title from its filename.
func title(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// mdBuilder accumulates Markdown blocks separated by blank lines.
type mdBuilder struct {
	sb strings.Builder
}

func (b *mdBuilder) block(s string) {
	if s == "" {
		return
	}
	if b.sb.Len() > 0 {
		b.sb.WriteString("\n\n")
	}
	b.sb.WriteString(s)
}

func (b *mdBuilder) heading(level int, text string) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return
	}
	b.block(strings.Repeat("#", level) + " " + text)
}

func (b *mdBuilder) paragraph(text string) {
	b.block(escapeHashes(strings.TrimSpace(text)))
}

func (b *mdBuilder) code(text string) {
	text = strings.Trim(text, "\n")
	if strings.TrimSpace(text) == "" {
		return
	}
	b.block("```\n" + text + "\n```")
}

func (b *mdBuilder) String() string {
	if b.sb.Len() == 0 {
		return ""
	}
	return b.sb.String() + "\n"
}

// escapeHashes prefixes body lines that would otherwise read as headers.
func escapeHashes(text string) string {
	if !strings.Contains(text, "#") {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "#") {
			lines[i] = `\` + line
		}
	}
	return strings.Join(lines, "\n")
}
