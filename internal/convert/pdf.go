package convert

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDF converts PDF files page by page. It tries the Go library first,
// then falls back to pdftotext if enabled.
type PDF struct {
	FallbackPdftotext bool
}

func (p *PDF) Convert(r io.Reader, filename string) (string, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "embedprep-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	text, err := extractPDFText(tmpPath)
	if err != nil && p.FallbackPdftotext {
		text, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	return pagesToMarkdown(text), nil
}

// pagesToMarkdown renders form-feed separated pages as "# Page N" sections.
func pagesToMarkdown(text string) string {
	var md mdBuilder
	for i, page := range strings.Split(text, "\f") {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		md.heading(1, fmt.Sprintf("Page %d", i+1))
		md.paragraph(page)
	}
	return md.String()
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if i > 1 {
			buf.WriteString("\f") // Form feed as page separator.
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
