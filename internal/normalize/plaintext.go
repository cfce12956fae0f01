package normalize

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// PlainText reduces Markdown to readable text. Emphasis, links and headings
// keep only their text; code blocks are kept verbatim.
func PlainText(src string) string {
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if t := blockText(n, source); t != "" {
			blocks = append(blocks, t)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// blockText gets the text content of a goldmark block node.
func blockText(n ast.Node, src []byte) string {
	switch n.Kind() {
	case ast.KindHTMLBlock, ast.KindThematicBreak:
		return ""
	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimRight(buf.String(), "\n")
	}

	// Containers (lists, quotes) hold blocks; leaves hold inlines.
	if n.FirstChild() != nil && n.FirstChild().Type() == ast.TypeBlock {
		sep := "\n\n"
		if n.Kind() == ast.KindList || n.Kind() == ast.KindListItem {
			sep = "\n"
		}
		var parts []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t := blockText(c, src); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, sep)
	}

	var buf bytes.Buffer
	inlineText(n, src, &buf)
	return strings.TrimSpace(buf.String())
}

func inlineText(n ast.Node, src []byte, buf *bytes.Buffer) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.HardLineBreak() || node.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.Label(src))
		case *ast.RawHTML:
		default:
			// Recurse for nested inlines.
			inlineText(c, src, buf)
		}
	}
}
