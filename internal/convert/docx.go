package convert

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCX converts Word documents. Paragraphs styled "Heading N" become headers.
type DOCX struct{}

func (p *DOCX) Convert(r io.Reader, filename string) (string, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "embedprep-docx-*.docx")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return "", fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var md mdBuilder
	sawHeading := false
	var body []string

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		if level := docxHeadingLevel(para); level > 0 {
			if !sawHeading && len(body) > 0 {
				// Text ahead of the first heading would be dropped by the splitter.
				md.heading(1, title(filename))
			}
			for _, b := range body {
				md.paragraph(b)
			}
			body = body[:0]
			md.heading(level, text)
			sawHeading = true
			continue
		}
		body = append(body, text)
	}

	if !sawHeading && len(body) > 0 {
		md.heading(1, title(filename))
	}
	for _, b := range body {
		md.paragraph(b)
	}

	return md.String(), nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") || len(style) != len("heading")+1 {
		return 0
	}
	d := style[len(style)-1]
	if d < '1' || d > '6' {
		return 0
	}
	return int(d - '0')
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
