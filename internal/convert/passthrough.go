package convert

import (
	"io"
	"strings"
)

// Passthrough handles Markdown and plain text, which the splitter reads as is.
type Passthrough struct{}

func (p *Passthrough) Convert(r io.Reader, filename string) (string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(src), "\r\n", "\n"), nil
}
