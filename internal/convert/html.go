package convert

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTML converts HTML documents.
type HTML struct{}

func (p *HTML) Convert(r io.Reader, filename string) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var md mdBuilder

	body := findElement(doc, "body")
	if body == nil {
		body = doc
	}
	if findElement(body, "h1") == nil {
		t := title(filename)
		if el := findElement(doc, "title"); el != nil {
			if tt := textContent(el); tt != "" {
				t = tt
			}
		}
		md.heading(1, t)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				md.heading(level, textContent(n))
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "pre":
				md.code(rawText(n))
				return
			case "p", "li", "td", "blockquote":
				md.paragraph(textContent(n))
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)

	return md.String(), nil
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func textContent(n *html.Node) string {
	return strings.TrimSpace(rawText(n))
}

// rawText concatenates descendant text nodes without trimming, so <pre>
// content keeps its layout.
func rawText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if el := findElement(c, tag); el != nil {
			return el
		}
	}
	return nil
}
